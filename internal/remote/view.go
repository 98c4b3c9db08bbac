package remote

import "github.com/samber/lo"

// Play/pause control icons.
const (
	IconPlay  = "play"
	IconPause = "pause"
)

// View is what a remote page renders. Pages receive a new View only when
// it differs from the previous one.
type View struct {
	PlayPauseClass  string `json:"playPauseClass"`
	Volume          int    `json:"volume"`
	Muted           bool   `json:"muted"`
	NowPlaying      string `json:"nowPlaying"`
	ErrorVisible    bool   `json:"errorVisible"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
	InterfaceHidden bool   `json:"interfaceHidden"`
	Connected       bool   `json:"connected"`
}

// Render derives the view from s.
func Render(s State) View {
	return View{
		PlayPauseClass:  lo.Ternary(s.Playing, IconPause, IconPlay),
		Volume:          s.Volume,
		Muted:           s.Muted,
		NowPlaying:      s.NowPlayingTitle,
		ErrorVisible:    s.Overlay.Visible,
		ErrorMessage:    s.Overlay.Message,
		InterfaceHidden: s.Overlay.Visible,
		Connected:       s.Connected,
	}
}
