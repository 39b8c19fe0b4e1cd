package suite

import "github.com/ethpandaops/sitecheck/internal/browser"

// Route is a site path under test.
type Route struct {
	Path string
	Name string
}

// SiteRoutes are the routes covered by the cross-browser suite.
var SiteRoutes = []Route{
	{Path: "/", Name: "Home"},
	{Path: "/work", Name: "Work"},
	{Path: "/services", Name: "Services"},
	{Path: "/about", Name: "About"},
	{Path: "/contact", Name: "Contact"},
	{Path: "/client", Name: "Client"},
}

// CoreRoutes are the routes covered by the mobile, performance and
// stability suites.
var CoreRoutes = SiteRoutes[:5]

// NotFoundPath is a route the site does not define.
const NotFoundPath = "/non-existent-page-12345"

// MobileDevices are the viewport profiles the mobile suite runs under.
// Profiles narrower than 768px are mobile; narrower than 1024px have touch.
var MobileDevices = []browser.DeviceProfile{
	mobileDevice("iPhone SE", 375, 667, 2),
	mobileDevice("iPhone 12", 390, 844, 3),
	mobileDevice("iPhone 12 Pro Max", 428, 926, 3),
	mobileDevice("iPad Mini", 768, 1024, 2),
	mobileDevice("iPad Pro", 1024, 1366, 2),
	mobileDevice("Pixel 5", 393, 851, 2.75),
	mobileDevice("Samsung Galaxy S20", 412, 915, 3),
	mobileDevice("Samsung Galaxy Tab S7", 800, 1280, 2),
}

func mobileDevice(name string, width, height int, scale float64) browser.DeviceProfile {
	return browser.DeviceProfile{
		Name:              name,
		Width:             width,
		Height:            height,
		DeviceScaleFactor: scale,
		IsMobile:          width < 768,
		HasTouch:          width < 1024,
	}
}

var (
	// smallPhone is the profile of the gesture, form and mobile-feature groups.
	smallPhone = browser.DeviceProfile{Name: "375x667", Width: 375, Height: 667, DeviceScaleFactor: 1}

	touchPhone  = withTouch(smallPhone, false, true)
	mobilePhone = withTouch(smallPhone, true, false)
	fullPhone   = withTouch(smallPhone, true, true)
)

func withTouch(d browser.DeviceProfile, mobile, touch bool) browser.DeviceProfile {
	d.IsMobile = mobile
	d.HasTouch = touch

	return d
}
