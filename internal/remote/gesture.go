package remote

import (
	"fmt"

	"github.com/samber/lo"

	"norelock.dev/osmcremote/internal/mediacenter"
	"norelock.dev/osmcremote/internal/utils"
)

// Kind names what the user did on the page.
type Kind string

// Gesture kinds.
const (
	KindNavigate         Kind = "navigate"
	KindMenu             Kind = "menu"
	KindPlayback         Kind = "playback"
	KindVolumeSet        Kind = "volume.set"
	KindVolumeUp         Kind = "volume.up"
	KindVolumeDown       Kind = "volume.down"
	KindText             Kind = "text"
	KindNotify           Kind = "notify"
	KindSync             Kind = "sync"
	KindFullscreenProbe  Kind = "fullscreen.probe"
	KindFullscreenToggle Kind = "fullscreen.toggle"
	KindFullscreenExit   Kind = "fullscreen.exit"
	KindFullscreenChange Kind = "fullscreen.change"
	KindWindowBlur       Kind = "window.blur"
	KindErrorDismiss     Kind = "error.dismiss"
)

// Gesture is one user interaction forwarded by a remote page.
type Gesture struct {
	Kind    Kind     `json:"kind" validate:"required,oneof=navigate menu playback volume.set volume.up volume.down text notify sync fullscreen.probe fullscreen.toggle fullscreen.exit fullscreen.change window.blur error.dismiss"`
	Method  string   `json:"method,omitempty" validate:"omitempty,rpcmethod"`
	Volume  *int     `json:"volume,omitempty" validate:"omitempty,min=0,max=100"`
	Text    string   `json:"text,omitempty" validate:"max=1024"`
	Title   string   `json:"title,omitempty" validate:"max=128"`
	Message string   `json:"message,omitempty" validate:"max=512"`
	Vendors []string `json:"vendors,omitempty" validate:"omitempty,dive,oneof=standard webkit moz ms"`
	Active  *bool    `json:"active,omitempty"`

	// Origin identifies the page that sent the gesture. Browser actions
	// produced by the gesture are sent back to it only.
	Origin string `json:"-"`
}

// Validate checks the gesture shape and the fields its kind needs.
func (g Gesture) Validate() error {
	if err := utils.Validate(g); err != nil {
		return err
	}

	var missing string
	switch g.Kind {
	case KindNavigate, KindMenu, KindPlayback:
		if g.Method == "" {
			missing = "method"
		}
	case KindVolumeSet:
		if g.Volume == nil {
			missing = "volume"
		}
	case KindText:
		if g.Text == "" {
			missing = "text"
		}
	case KindNotify:
		if g.Title == "" {
			missing = "title"
		}
	case KindFullscreenChange:
		if g.Active == nil {
			missing = "active"
		}
	}

	if missing != "" {
		return utils.ValidationError(fmt.Sprintf("%s gesture needs %s", g.Kind, missing), utils.ErrValidation).
			WithDetails(map[string]any{"field": missing})
	}
	return nil
}

// Command is one JSON-RPC call to make.
type Command struct {
	Method string
	Params any

	// SyncAfter asks for a sync once the call succeeds.
	SyncAfter bool
}

// Local reports whether the gesture is handled without the media center.
func (g Gesture) Local() bool {
	switch g.Kind {
	case KindFullscreenProbe, KindFullscreenToggle, KindFullscreenExit, KindFullscreenChange,
		KindWindowBlur, KindErrorDismiss:
		return true
	}
	return false
}

// syncCommands asks for everything the view reflects.
func syncCommands() []Command {
	return []Command{
		{Method: mediacenter.MethodGetActivePlayers},
		{Method: mediacenter.MethodGetProperties, Params: mediacenter.PropertiesParams{Properties: []string{"volume", "muted"}}},
	}
}

// Commands maps a gesture to the calls it makes given the current state.
// Volume steps that would leave [min, max] map to nothing. Local gestures
// map to nothing as well.
func (g Gesture) Commands(s State, step, minVolume, maxVolume int) []Command {
	switch g.Kind {
	case KindNavigate, KindMenu:
		return []Command{{Method: g.Method}}

	case KindPlayback:
		// A paused player is still active, so a sync after PlayPause
		// would undo the speed it reports.
		return []Command{{
			Method:    g.Method,
			Params:    mediacenter.PlayerParams{PlayerID: s.PlayerID},
			SyncAfter: g.Method != mediacenter.MethodPlayPause,
		}}

	case KindVolumeSet:
		return []Command{volumeCommand(lo.Clamp(*g.Volume, minVolume, maxVolume))}

	case KindVolumeUp, KindVolumeDown:
		target, ok := stepVolume(s.Volume, g.Kind, step, minVolume, maxVolume)
		if !ok {
			return nil
		}
		return []Command{volumeCommand(target)}

	case KindText:
		return []Command{{Method: mediacenter.MethodSendText, Params: mediacenter.SendTextParams{Text: g.Text, Done: true}}}

	case KindNotify:
		return []Command{{Method: mediacenter.MethodShowNotification, Params: mediacenter.ShowNotificationParams{Title: g.Title, Message: g.Message}}}

	case KindSync:
		return syncCommands()
	}

	return nil
}

func volumeCommand(v int) Command {
	return Command{Method: mediacenter.MethodSetVolume, Params: mediacenter.VolumeParams{Volume: v}}
}

// stepVolume moves volume one step and reports false when that would
// cross a bound.
func stepVolume(volume int, kind Kind, step, minVolume, maxVolume int) (int, bool) {
	target := volume + step
	if kind == KindVolumeDown {
		target = volume - step
	}
	if target < minVolume || target > maxVolume {
		return volume, false
	}
	return target, true
}
