package remote

import "github.com/samber/lo"

// Vendor names a browser fullscreen API.
type Vendor string

// Fullscreen APIs in probe order.
const (
	VendorStandard Vendor = "standard"
	VendorWebkit   Vendor = "webkit"
	VendorMoz      Vendor = "moz"
	VendorMS       Vendor = "ms"
)

// Action targets.
const (
	TargetElement  = "element"
	TargetDocument = "document"
)

// Action is a browser call a page must make, e.g. element.webkitRequestFullscreen().
type Action struct {
	Vendor Vendor `json:"vendor"`
	Call   string `json:"call"`
	Target string `json:"target"`
}

// Driver is one browser fullscreen API behind a uniform interface.
type Driver interface {
	Vendor() Vendor
	Request() Action
	Exit() Action
	IsActive() bool
	// Observe records the fullscreen state the browser reported.
	Observe(active bool)
}

type apiDriver struct {
	vendor  Vendor
	request string
	exit    string
	active  bool
}

var drivers = []apiDriver{
	{vendor: VendorStandard, request: "requestFullscreen", exit: "exitFullscreen"},
	{vendor: VendorWebkit, request: "webkitRequestFullscreen", exit: "webkitExitFullscreen"},
	{vendor: VendorMoz, request: "mozRequestFullScreen", exit: "mozCancelFullScreen"},
	{vendor: VendorMS, request: "msRequestFullscreen", exit: "msExitFullscreen"},
}

// Probe returns a driver for the first API, in probe order, that the page
// reported as supported. It returns nil when none is.
func Probe(supported []string) Driver {
	for _, d := range drivers {
		if lo.Contains(supported, string(d.vendor)) {
			driver := d
			return &driver
		}
	}
	return nil
}

func (d *apiDriver) Vendor() Vendor { return d.vendor }

func (d *apiDriver) Request() Action {
	d.active = true
	return Action{Vendor: d.vendor, Call: d.request, Target: TargetElement}
}

func (d *apiDriver) Exit() Action {
	d.active = false
	return Action{Vendor: d.vendor, Call: d.exit, Target: TargetDocument}
}

func (d *apiDriver) IsActive() bool { return d.active }

func (d *apiDriver) Observe(active bool) { d.active = active }

// Fullscreen is the windowed/fullscreen machine. Without a driver every
// request is a no-op.
type Fullscreen struct {
	driver     Driver
	exitOnBlur bool
}

// NewFullscreen creates the machine. driver may be nil.
func NewFullscreen(driver Driver, exitOnBlur bool) *Fullscreen {
	return &Fullscreen{driver: driver, exitOnBlur: exitOnBlur}
}

// Supported reports whether a fullscreen API is available.
func (f *Fullscreen) Supported() bool {
	return f.driver != nil
}

// Active reports whether the page is fullscreen.
func (f *Fullscreen) Active() bool {
	return f.driver != nil && f.driver.IsActive()
}

// Toggle enters fullscreen when windowed and leaves it otherwise.
func (f *Fullscreen) Toggle() (Action, bool) {
	if f.driver == nil {
		return Action{}, false
	}
	if f.driver.IsActive() {
		return f.driver.Exit(), true
	}
	return f.driver.Request(), true
}

// Exit leaves fullscreen if the page is in it.
func (f *Fullscreen) Exit() (Action, bool) {
	if !f.Active() {
		return Action{}, false
	}
	return f.driver.Exit(), true
}

// Blur handles the window losing focus.
func (f *Fullscreen) Blur() (Action, bool) {
	if !f.exitOnBlur {
		return Action{}, false
	}
	return f.Exit()
}

// Changed records a fullscreen change reported by the browser, which
// covers exits made through browser controls.
func (f *Fullscreen) Changed(active bool) {
	if f.driver != nil {
		f.driver.Observe(active)
	}
}
