package browser

import "fmt"

const (
	chromeUA  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	firefoxUA = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"
	safariUA  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"
	pixelUA   = "Mozilla/5.0 (Linux; Android 11; Pixel 5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	iPhoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 14_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Mobile/15E148 Safari/604.1"
	iPadUA    = "Mozilla/5.0 (iPad; CPU OS 12_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/13.0.3 Mobile/15E148 Safari/604.1"
)

// DeviceProfile drives how a browser context is emulated.
type DeviceProfile struct {
	Name              string
	Width             int
	Height            int
	DeviceScaleFactor float64
	IsMobile          bool
	HasTouch          bool
	UserAgent         string
}

// String implements fmt.Stringer.
func (d DeviceProfile) String() string {
	return fmt.Sprintf("%s (%dx%d@%gx)", d.Name, d.Width, d.Height, d.scale())
}

func (d DeviceProfile) scale() float64 {
	if d.DeviceScaleFactor <= 0 {
		return 1
	}

	return d.DeviceScaleFactor
}

// Descriptor is a named device with the engine it ships with.
type Descriptor struct {
	Profile DeviceProfile
	Engine  Engine
}

// Descriptors are the named devices a project may reference.
var Descriptors = map[string]Descriptor{
	"Desktop Chrome": {
		Profile: DeviceProfile{Name: "Desktop Chrome", Width: 1280, Height: 720, DeviceScaleFactor: 1, UserAgent: chromeUA},
		Engine:  Chromium,
	},
	"Desktop Chrome HiDPI": {
		Profile: DeviceProfile{Name: "Desktop Chrome HiDPI", Width: 1280, Height: 720, DeviceScaleFactor: 2, UserAgent: chromeUA},
		Engine:  Chromium,
	},
	"Desktop Firefox": {
		Profile: DeviceProfile{Name: "Desktop Firefox", Width: 1280, Height: 720, DeviceScaleFactor: 1, UserAgent: firefoxUA},
		Engine:  Firefox,
	},
	"Desktop Safari": {
		Profile: DeviceProfile{Name: "Desktop Safari", Width: 1280, Height: 720, DeviceScaleFactor: 2, UserAgent: safariUA},
		Engine:  WebKit,
	},
	"Pixel 5": {
		Profile: DeviceProfile{Name: "Pixel 5", Width: 393, Height: 727, DeviceScaleFactor: 2.75, IsMobile: true, HasTouch: true, UserAgent: pixelUA},
		Engine:  Chromium,
	},
	"iPhone 12": {
		Profile: DeviceProfile{Name: "iPhone 12", Width: 390, Height: 664, DeviceScaleFactor: 3, IsMobile: true, HasTouch: true, UserAgent: iPhoneUA},
		Engine:  WebKit,
	},
	"iPad (gen 7)": {
		Profile: DeviceProfile{Name: "iPad (gen 7)", Width: 810, Height: 1080, DeviceScaleFactor: 2, IsMobile: true, HasTouch: true, UserAgent: iPadUA},
		Engine:  WebKit,
	},
}

// LookupDevice returns the named device descriptor.
func LookupDevice(name string) (Descriptor, bool) {
	d, ok := Descriptors[name]

	return d, ok
}

// DefaultDevice is used when a project only declares a viewport.
func DefaultDevice(width, height int) DeviceProfile {
	return DeviceProfile{
		Name:              fmt.Sprintf("%dx%d", width, height),
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
		UserAgent:         chromeUA,
	}
}
