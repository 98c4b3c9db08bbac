package remote

// State is everything the remote knows about the media center. It is
// shared by every page and owned by the controller loop. Fullscreen is
// kept per page by the loop.
type State struct {
	Connected       bool    `json:"connected"`
	FailureCount    int     `json:"failureCount"`
	Playing         bool    `json:"playing"`
	Volume          int     `json:"volume"`
	Muted           bool    `json:"muted"`
	PlayerID        int     `json:"playerId"`
	NowPlayingTitle string  `json:"nowPlayingTitle"`
	Overlay         Overlay `json:"overlay"`
}

// NewState returns the state of a page that has not heard from the media
// center yet.
func NewState(defaultTitle string) State {
	return State{NowPlayingTitle: defaultTitle}
}
