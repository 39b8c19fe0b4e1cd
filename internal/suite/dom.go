package suite

import (
	"encoding/json"
	"fmt"
)

// Selectors shared by several suites.
const (
	selNavLinks   = "nav a, header a"
	selButtonsA   = "button, a"
	selAnchorsBtn = "a, button"
	selTextInputs = "input, textarea"
	selRequired   = "input[required], textarea[required]"
	selSubmit     = `button[type="submit"], input[type="submit"]`
	selMenuToggle = `button[aria-label*="menu"], button[class*="menu"], [class*="hamburger"]`
	selMenuButton = `button[aria-label*="menu"], button[class*="menu"]`
	selHoverable  = `a, button, [class*="hover"]`
	selViewport   = `meta[name="viewport"]`
	selHeadings   = "h1, h2, h3, h4, h5, h6"
)

// visibleFn mirrors the usual visibility rule: a non-empty box that is not
// hidden by style.
const visibleFn = `const visible = (el) => {
  const r = el.getBoundingClientRect();
  const s = window.getComputedStyle(el);
  return r.width > 0 && r.height > 0 && s.visibility !== "hidden" && s.display !== "none";
};`

const (
	bodyTextScript = `document.body ? document.body.textContent : ""`
	scrollYScript  = `window.scrollY`

	navHrefsScript = `Array.from(document.querySelectorAll("nav a, header a")).slice(0, 5).map((a) => a.getAttribute("href"))`

	inputTypesScript = `Array.from(document.querySelectorAll("input, textarea")).map((el) => el.getAttribute("type"))`

	requiredInvalidScript = `Array.from(document.querySelectorAll("input[required], textarea[required]")).map((el) => !el.checkValidity())`

	clickableScript = `(() => {
  ` + visibleFn + `
  return Array.from(document.querySelectorAll("button, a")).slice(0, 10)
    .filter((el) => visible(el) && !el.disabled).length;
})()`

	visibleAnchorsScript = `(() => {
  ` + visibleFn + `
  return Array.from(document.querySelectorAll("a, button")).slice(0, 5).map(visible);
})()`

	scrollToBottomScript = `window.scrollTo(0, document.body.scrollHeight)`
	scrollToTopScript    = `window.scrollTo(0, 0)`

	imagesLoadedScript = `(() => {
  ` + visibleFn + `
  const images = Array.from(document.querySelectorAll("img"));
  return {
    total: images.length,
    loaded: images.filter((img) => visible(img) && img.getAttribute("src") && img.naturalWidth > 0).length,
  };
})()`

	videoReadyScript = `(() => {
  ` + visibleFn + `
  return Array.from(document.querySelectorAll("video")).filter(visible).map((v) => v.readyState);
})()`

	missingAltScript = `(() => {
  ` + visibleFn + `
  return Array.from(document.querySelectorAll("img"))
    .filter((img) => visible(img) && !img.getAttribute("alt"))
    .map((img) => img.getAttribute("src") || "");
})()`

	unlabelledLinksScript = `Array.from(document.querySelectorAll("a"))
  .filter((a) => !(a.textContent || a.getAttribute("aria-label")))
  .map((a) => a.getAttribute("href") || "")`

	overflowXScript = `document.documentElement.scrollWidth > window.innerWidth`

	interactiveSizeScript = `(() => {
  ` + visibleFn + `
  const elements = Array.from(document.querySelectorAll('button, a, input, select, textarea, [role="button"]'));
  let inaccessible = 0;
  for (const el of elements) {
    if (!visible(el)) continue;
    const r = el.getBoundingClientRect();
    if (!(r.width >= 44 || r.height >= 44)) inaccessible++;
  }
  return { total: elements.length, failing: inaccessible };
})()`

	fontSizesScript = `Array.from(document.querySelectorAll("p, span, a, button, h1, h2, h3, h4, h5, h6"))
  .map((el) => parseFloat(window.getComputedStyle(el).fontSize))`

	tapTargetScript = `(() => {
  ` + visibleFn + `
  const targets = Array.from(document.querySelectorAll('a, button, input, select, textarea, [role="button"]'));
  let small = 0;
  for (const el of targets) {
    if (!visible(el)) continue;
    const r = el.getBoundingClientRect();
    if (r.width * r.height < 44 * 44) small++;
  }
  return { total: targets.length, failing: small };
})()`

	viewportMetaScript = `(() => {
  const meta = document.querySelector('meta[name="viewport"]');
  return meta ? meta.getAttribute("content") : null;
})()`

	scrollWidthScript = `({ scrollWidth: document.documentElement.scrollWidth, clientWidth: document.documentElement.clientWidth })`

	tapScript = `(() => {
  const el = document.elementFromPoint(100, 300);
  if (!el) return false;
  try {
    const touch = new Touch({ identifier: 1, target: el, clientX: 100, clientY: 300 });
    el.dispatchEvent(new TouchEvent("touchstart", { touches: [touch], changedTouches: [touch], bubbles: true }));
    el.dispatchEvent(new TouchEvent("touchend", { touches: [], changedTouches: [touch], bubbles: true }));
  } catch (e) {
    el.dispatchEvent(new MouseEvent("click", { clientX: 100, clientY: 300, bubbles: true }));
  }
  return true;
})()`

	scrollBy500Script = `window.scrollBy(0, 500)`

	formFieldHeightsScript = `(() => {
  ` + visibleFn + `
  return Array.from(document.querySelectorAll("input, textarea, select")).filter(visible)
    .map((el) => el.getBoundingClientRect().height);
})()`

	firstInputFocusedScript = `document.querySelector("input, textarea") === document.activeElement`

	headerTopScript = `(() => {
  const header = document.querySelector("header");
  return header ? header.getBoundingClientRect().top : null;
})()`

	scrollTo500Script = `window.scrollTo(0, 500)`

	blockingScriptsScript = `({
  blockingScripts: document.querySelectorAll('script:not([defer]):not([async]):not([type="module"])').length,
  blockingStyles: document.querySelectorAll('link[rel="stylesheet"]:not([media])').length,
})`

	scriptSrcsScript     = `Array.from(document.querySelectorAll("script[src]")).map((s) => s.getAttribute("src"))`
	stylesheetHrefScript = `Array.from(document.querySelectorAll('link[rel="stylesheet"]')).map((l) => l.getAttribute("href"))`

	imageOptimizationScript = `(() => {
  ` + visibleFn + `
  const images = Array.from(document.querySelectorAll("img"));
  let oversized = 0;
  for (const img of images) {
    if (!visible(img)) continue;
    const displayWidth = img.getBoundingClientRect().width * 2;
    if (img.naturalWidth > displayWidth * 1.5) oversized++;
  }
  return { total: images.length, failing: oversized };
})()`

	lazyImagesScript = `(() => {
  const images = Array.from(document.querySelectorAll("img"));
  return { total: images.length, lazy: images.filter((img) => img.getAttribute("loading") === "lazy").length };
})()`

	halfScrollScript = `window.scrollTo(0, document.body.scrollHeight / 2)`

	imageURLsScript = `Array.from(document.querySelectorAll("img")).map((img) => img.src).filter((src) => src && !src.startsWith("data:"))`

	scrollBy10Script = `window.scrollBy(0, 10)`

	onlineScript = `navigator.onLine`
)

// tally is a count of elements and how many of them fail a check.
type tally struct {
	Total   int `json:"total"`
	Failing int `json:"failing"`
}

// passRatio is the share of elements that pass. An empty set passes.
func (c tally) passRatio() float64 {
	if c.Total == 0 {
		return 1
	}

	return 1 - float64(c.Failing)/float64(c.Total)
}

func (c tally) failRatio() float64 {
	if c.Total == 0 {
		return 0
	}

	return float64(c.Failing) / float64(c.Total)
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func inputValueScript(selector string, index int) string {
	return fmt.Sprintf(`document.querySelectorAll(%s)[%d].value`, jsString(selector), index)
}

func oversizedImagesScript(viewportWidth int) string {
	return fmt.Sprintf(`(() => {
  %s
  const images = Array.from(document.querySelectorAll("img"));
  let oversized = 0;
  for (const img of images) {
    if (visible(img) && img.naturalWidth > %d * 1.5) oversized++;
  }
  return { total: images.length, failing: oversized };
})()`, visibleFn, viewportWidth)
}

func menuToggleScript(selector string) string {
	return fmt.Sprintf(`(() => {
  %s
  const el = document.querySelector(%s);
  if (!el) return { exists: false };
  const r = el.getBoundingClientRect();
  return { exists: true, visible: visible(el), width: r.width, height: r.height, expanded: el.getAttribute("aria-expanded") };
})()`, visibleFn, jsString(selector))
}

type menuToggle struct {
	Exists   bool    `json:"exists"`
	Visible  bool    `json:"visible"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Expanded *string `json:"expanded"`
}

func rapidScrollScript(i int) string {
	return fmt.Sprintf(`window.scrollTo(0, (%d * 100) %% Math.max(document.body.scrollHeight, 1))`, i)
}

func smoothScrollScript(i int) string {
	return fmt.Sprintf(`window.scrollTo({ top: (%d * 500) %% Math.max(document.body.scrollHeight, 1), behavior: "smooth" })`, i)
}
