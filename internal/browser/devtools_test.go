package browser

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// devTools is an in-process DevTools endpoint. It answers the commands
// chromedp issues to open tabs, navigate and evaluate, and keeps a session
// history per attached target so back and forward work.
type devTools struct {
	srv *httptest.Server

	mu       sync.Mutex
	calls    []cdpCall
	targets  int
	loaders  int
	contexts int
	tabs     map[string]*devToolsTab
}

type devToolsTab struct {
	targetID string
	history  []string
	index    int
}

func (t *devToolsTab) current() string {
	return t.history[t.index]
}

type cdpCall struct {
	Method    string
	SessionID string
	Params    json.RawMessage
}

type cdpMessage struct {
	ID        int64           `json:"id"`
	Method    string          `json:"method"`
	SessionID string          `json:"sessionId"`
	Params    json.RawMessage `json:"params"`
}

func newDevTools(t *testing.T) *devTools {
	t.Helper()

	d := &devTools{tabs: make(map[string]*devToolsTab)}
	d.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/json/version" {
			host := strings.TrimPrefix(d.srv.URL, "http://")
			fmt.Fprintf(w, `{"Browser":"HeadlessChrome/120.0","webSocketDebuggerUrl":"ws://%s/devtools/browser/fake"}`, host)
			return
		}

		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}

		go d.serve(conn)
	}))
	t.Cleanup(d.srv.Close)

	return d
}

func (d *devTools) URL() string {
	return d.srv.URL
}

// Calls returns the recorded commands with the given method.
func (d *devTools) Calls(method string) []cdpCall {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []cdpCall
	for _, c := range d.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}

	return out
}

func (d *devTools) serve(conn net.Conn) {
	defer conn.Close()

	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			return
		}

		var msg cdpMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}

		result, events := d.handle(msg)

		reply := map[string]any{"id": msg.ID, "result": result}
		if msg.SessionID != "" {
			reply["sessionId"] = msg.SessionID
		}

		if err := writeJSON(conn, reply); err != nil {
			return
		}

		for _, ev := range events {
			if msg.SessionID != "" {
				ev["sessionId"] = msg.SessionID
			}
			if err := writeJSON(conn, ev); err != nil {
				return
			}
		}
	}
}

func writeJSON(conn net.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return wsutil.WriteServerText(conn, b)
}

func event(method string, params map[string]any) map[string]any {
	return map[string]any{"method": method, "params": params}
}

func (d *devTools) handle(msg cdpMessage) (map[string]any, []map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, cdpCall{Method: msg.Method, SessionID: msg.SessionID, Params: msg.Params})

	switch msg.Method {
	case "Target.setDiscoverTargets":
		if msg.SessionID != "" {
			return map[string]any{}, nil
		}
		// The browser's initial tab.
		return map[string]any{}, []map[string]any{
			event("Target.targetCreated", map[string]any{"targetInfo": map[string]any{
				"targetId": "T0", "type": "page", "title": "", "url": "about:blank",
				"attached": false, "canAccessOpener": false,
			}}),
		}

	case "Target.createBrowserContext":
		d.contexts++
		return map[string]any{"browserContextId": fmt.Sprintf("BC%d", d.contexts)}, nil

	case "Target.createTarget":
		d.targets++
		return map[string]any{"targetId": fmt.Sprintf("T%d", d.targets)}, nil

	case "Target.attachToTarget":
		var p struct {
			TargetID string `json:"targetId"`
		}
		_ = json.Unmarshal(msg.Params, &p)

		session := "S-" + p.TargetID
		d.tabs[session] = &devToolsTab{targetID: p.TargetID, history: []string{"about:blank"}}

		return map[string]any{"sessionId": session}, nil

	case "Page.navigate":
		return d.navigate(msg)

	case "Runtime.evaluate":
		return d.evaluate(msg), nil
	}

	return map[string]any{}, nil
}

// navigate pushes the URL onto the tab history and replays the event
// sequence Chrome emits for a successful document load.
func (d *devTools) navigate(msg cdpMessage) (map[string]any, []map[string]any) {
	var p struct {
		URL string `json:"url"`
	}
	_ = json.Unmarshal(msg.Params, &p)

	tab := d.tabs[msg.SessionID]
	if tab == nil {
		return map[string]any{"errorText": "no such session"}, nil
	}

	tab.history = append(tab.history[:tab.index+1], p.URL)
	tab.index = len(tab.history) - 1

	d.loaders++
	loader := fmt.Sprintf("L%d", d.loaders)
	frame := tab.targetID

	lifecycle := func(name string) map[string]any {
		return event("Page.lifecycleEvent", map[string]any{"frameId": frame, "loaderId": loader, "name": name})
	}

	events := []map[string]any{
		event("Page.frameNavigated", map[string]any{"frame": map[string]any{
			"id": frame, "loaderId": loader, "url": p.URL, "securityOrigin": p.URL, "mimeType": "text/html",
		}}),
		event("Network.requestWillBeSent", map[string]any{
			"requestId": loader, "loaderId": loader, "documentURL": p.URL, "type": "Document", "frameId": frame,
		}),
		event("Network.responseReceived", map[string]any{
			"requestId": loader, "loaderId": loader, "type": "Document", "frameId": frame,
			"response": map[string]any{"url": p.URL, "status": 200, "statusText": "OK", "mimeType": "text/html"},
		}),
		lifecycle("init"),
		lifecycle("DOMContentLoaded"),
		lifecycle("load"),
		lifecycle("networkIdle"),
		event("Page.loadEventFired", map[string]any{}),
	}

	return map[string]any{"frameId": frame, "loaderId": loader}, events
}

func (d *devTools) evaluate(msg cdpMessage) map[string]any {
	var p struct {
		Expression string `json:"expression"`
	}
	_ = json.Unmarshal(msg.Params, &p)

	tab := d.tabs[msg.SessionID]
	undefined := map[string]any{"result": map[string]any{"type": "undefined"}}

	switch {
	case p.Expression == "self":
		return map[string]any{"result": map[string]any{"type": "object", "className": "Window", "description": "Window"}}
	case tab == nil:
		return undefined
	case p.Expression == "document.location.toString()":
		return map[string]any{"result": map[string]any{"type": "string", "value": tab.current()}}
	case p.Expression == "document.title":
		return map[string]any{"result": map[string]any{"type": "string", "value": "Fake " + tab.current()}}
	case p.Expression == "history.back()":
		if tab.index > 0 {
			tab.index--
		}
		return undefined
	case p.Expression == "history.forward()":
		if tab.index < len(tab.history)-1 {
			tab.index++
		}
		return undefined
	case strings.Contains(p.Expression, "location.href"):
		return map[string]any{"result": map[string]any{
			"type":  "object",
			"value": map[string]any{"href": tab.current(), "ready": "complete"},
		}}
	case p.Expression == "40+2":
		return map[string]any{"result": map[string]any{"type": "number", "value": 42, "description": "42"}}
	}

	return undefined
}
