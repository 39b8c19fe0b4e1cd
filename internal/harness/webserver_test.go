package harness

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/ethpandaops/sitecheck/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusServer(t *testing.T, status int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestWebServer_Ready(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusOK, true},
		{http.StatusFound, true},
		{http.StatusUnauthorized, true},
		{http.StatusForbidden, true},
		{http.StatusNotFound, false},
		{http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := statusServer(t, tt.status)
			w := NewWebServer(quietLogger(), config.WebServer{URL: srv.URL}, false)

			assert.Equal(t, tt.want, w.ready(context.Background()))
		})
	}
}

func TestWebServer_ReusesExisting(t *testing.T) {
	srv := statusServer(t, http.StatusOK)
	w := NewWebServer(quietLogger(), config.WebServer{
		Command:             "exit 1",
		URL:                 srv.URL,
		ReuseExistingServer: true,
	}, false)

	require.NoError(t, w.Start(context.Background()))
	assert.Nil(t, w.cmd, "no command started")
	assert.NoError(t, w.Stop())
}

func TestWebServer_InUseOnCI(t *testing.T) {
	srv := statusServer(t, http.StatusOK)
	w := NewWebServer(quietLogger(), config.WebServer{
		Command:             "exit 1",
		URL:                 srv.URL,
		ReuseExistingServer: true,
	}, true)

	assert.ErrorIs(t, w.Start(context.Background()), ErrServerInUse)
}

func TestWebServer_CommandExits(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}

	w := NewWebServer(quietLogger(), config.WebServer{
		Command: "exit 3",
		URL:     "http://127.0.0.1:1",
		Timeout: 10 * time.Second,
	}, false)

	err := w.Start(context.Background())
	assert.ErrorIs(t, err, ErrServerExited)
	assert.NoError(t, w.Stop())
}

func TestWebServer_TimesOut(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}

	w := NewWebServer(quietLogger(), config.WebServer{
		Command: "sleep 30",
		URL:     "http://127.0.0.1:1",
		Timeout: time.Second,
	}, false)

	start := time.Now()
	err := w.Start(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrServerExited)
	assert.Less(t, time.Since(start), 10*time.Second, "process group stopped after the timeout")
}
