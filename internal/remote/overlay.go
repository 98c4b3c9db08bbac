package remote

// Overlay is the error overlay. While it is visible the primary
// interface is hidden.
type Overlay struct {
	Visible bool   `json:"visible"`
	Message string `json:"message,omitempty"`
}

// Show makes the overlay visible with message.
func (o *Overlay) Show(message string) {
	o.Visible = true
	o.Message = message
}

// Dismiss hides the overlay. Nothing is retried.
func (o *Overlay) Dismiss() {
	o.Visible = false
	o.Message = ""
}
