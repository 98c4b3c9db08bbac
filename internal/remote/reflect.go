package remote

import (
	"encoding/json"

	"github.com/samber/lo"

	"norelock.dev/osmcremote/internal/mediacenter"
	"norelock.dev/osmcremote/internal/utils"
)

// reflector applies what the media center reports to the state. Fields
// that are missing or malformed are skipped.
type reflector struct {
	titleMax     int
	defaultTitle string
	minVolume    int
	maxVolume    int
}

func (r reflector) title(s *State, item *mediacenter.Item) {
	if title := item.DisplayTitle(); title != "" {
		s.NowPlayingTitle = utils.TruncateString(title, r.titleMax)
	}
}

func (r reflector) volume(s *State, v int) {
	s.Volume = lo.Clamp(v, r.minVolume, r.maxVolume)
}

func (r reflector) stopped(s *State) {
	s.Playing = false
	s.NowPlayingTitle = r.defaultTitle
}

func itemCommand(playerID int) Command {
	return Command{
		Method: mediacenter.MethodGetItem,
		Params: mediacenter.GetItemParams{PlayerID: playerID, Properties: []string{"title"}},
	}
}

func speedCommand(playerID int) Command {
	return Command{
		Method: mediacenter.MethodPlayerProperties,
		Params: mediacenter.PlayerPropertiesParams{PlayerID: playerID, Properties: []string{"speed"}},
	}
}

// Notification applies a notification and returns the calls it leads to.
func (r reflector) Notification(s *State, n mediacenter.Notification) []Command {
	switch n.Method {
	case mediacenter.OnVolumeChanged:
		ev := mediacenter.DecodeVolumeEvent(n.Data)
		if ev.Volume != nil {
			r.volume(s, mediacenter.RoundVolume(*ev.Volume))
		}
		if ev.Muted != nil {
			s.Muted = *ev.Muted
		}

	case mediacenter.OnPlay, mediacenter.OnResume:
		ev := mediacenter.DecodePlayerEvent(n.Data)
		s.Playing = true
		if ev.Player != nil && ev.Player.PlayerID != nil {
			s.PlayerID = *ev.Player.PlayerID
		}
		if ev.Item.DisplayTitle() == "" {
			// Kodi often announces only the item id.
			return []Command{itemCommand(s.PlayerID)}
		}
		r.title(s, ev.Item)

	case mediacenter.OnPause:
		ev := mediacenter.DecodePlayerEvent(n.Data)
		s.Playing = false
		r.title(s, ev.Item)

	case mediacenter.OnStop:
		r.stopped(s)
	}

	return nil
}

// Response applies the result of cmd and returns the calls it leads to.
func (r reflector) Response(s *State, cmd Command, result json.RawMessage) []Command {
	switch cmd.Method {
	case mediacenter.MethodGetActivePlayers:
		players := mediacenter.DecodeActivePlayers(result)
		first, ok := lo.Find(players, func(p mediacenter.ActivePlayer) bool { return p.PlayerID != nil })
		if !ok {
			s.Playing = false
			return nil
		}
		// An active player may be paused. Its speed decides playing.
		s.PlayerID = *first.PlayerID
		return []Command{itemCommand(s.PlayerID), speedCommand(s.PlayerID)}

	case mediacenter.MethodGetItem:
		r.title(s, mediacenter.DecodeItem(result))

	case mediacenter.MethodGetProperties:
		props := mediacenter.DecodeProperties(result)
		if props.Volume != nil {
			r.volume(s, mediacenter.RoundVolume(*props.Volume))
		}
		if props.Muted != nil {
			s.Muted = *props.Muted
		}

	case mediacenter.MethodSetVolume:
		if v, ok := mediacenter.DecodeVolume(result); ok {
			r.volume(s, v)
		}

	case mediacenter.MethodPlayPause, mediacenter.MethodPlayerProperties:
		if speed, ok := mediacenter.DecodeSpeed(result); ok {
			s.Playing = speed != 0
		}

	case mediacenter.MethodStop:
		r.stopped(s)
	}

	return nil
}
