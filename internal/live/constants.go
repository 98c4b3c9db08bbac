// Package live connects remote pages to the controller over WebSockets.
// Pages speak JSON-RPC 2.0: they send gestures and receive views.
package live

// Methods a page may call.
const (
	MethodGesture = "remote.gesture"
	MethodState   = "remote.state"
)

// Notifications pushed to pages.
const (
	EventView   = "remote.view"
	EventAction = "remote.action"
)

// Message directions for metrics.
const (
	directionIn  = "in"
	directionOut = "out"
)
