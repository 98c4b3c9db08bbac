package mediacenter

import (
	"encoding/json"
	"math"
)

// Outbound JSON-RPC methods.
const (
	MethodGetActivePlayers = "Player.GetActivePlayers"
	MethodGetItem          = "Player.GetItem"
	MethodPlayerProperties = "Player.GetProperties"
	MethodPlayPause        = "Player.PlayPause"
	MethodStop             = "Player.Stop"
	MethodGetProperties    = "Application.GetProperties"
	MethodSetVolume        = "Application.SetVolume"
	MethodSendText         = "Input.SendText"
	MethodShowNotification = "GUI.ShowNotification"
)

// Inbound notifications.
const (
	OnVolumeChanged = "Application.OnVolumeChanged"
	OnPlay          = "Player.OnPlay"
	OnResume        = "Player.OnResume"
	OnPause         = "Player.OnPause"
	OnStop          = "Player.OnStop"
)

// PlayerParams addresses a player.
type PlayerParams struct {
	PlayerID int `json:"playerid"`
}

// VolumeParams sets the application volume.
type VolumeParams struct {
	Volume int `json:"volume"`
}

// SendTextParams types text into the focused input.
type SendTextParams struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// ShowNotificationParams pops a toast on the media center screen.
type ShowNotificationParams struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// PropertiesParams lists the properties to fetch.
type PropertiesParams struct {
	Properties []string `json:"properties"`
}

// PlayerPropertiesParams lists the player properties to fetch.
type PlayerPropertiesParams struct {
	PlayerID   int      `json:"playerid"`
	Properties []string `json:"properties"`
}

// GetItemParams asks a player for its current item.
type GetItemParams struct {
	PlayerID   int      `json:"playerid"`
	Properties []string `json:"properties,omitempty"`
}

// ActivePlayer is one element of the Player.GetActivePlayers result.
type ActivePlayer struct {
	PlayerID *int   `json:"playerid"`
	Type     string `json:"type,omitempty"`
}

// ApplicationProperties is the Application.GetProperties result. Fields are
// pointers so absent values can be told apart from zero.
type ApplicationProperties struct {
	Volume *float64 `json:"volume"`
	Muted  *bool    `json:"muted"`
}

// Item is a media item as reported by players and notifications.
type Item struct {
	ID    *int   `json:"id,omitempty"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
	Label string `json:"label,omitempty"`
}

// DisplayTitle returns the title, falling back to the label.
func (i *Item) DisplayTitle() string {
	if i == nil {
		return ""
	}
	if i.Title != "" {
		return i.Title
	}
	return i.Label
}

// GetItemResult is the Player.GetItem result.
type GetItemResult struct {
	Item *Item `json:"item"`
}

// PlayerEventData is the data of Player.On* notifications.
type PlayerEventData struct {
	Item   *Item `json:"item"`
	Player *struct {
		PlayerID *int `json:"playerid"`
		Speed    *int `json:"speed"`
	} `json:"player"`
}

// VolumeEventData is the data of Application.OnVolumeChanged.
type VolumeEventData struct {
	Volume *float64 `json:"volume"`
	Muted  *bool    `json:"muted"`
}

// RoundVolume converts a reported volume to a whole percentage.
func RoundVolume(v float64) int {
	return int(math.Round(v))
}

// decodeLenient unmarshals data into v and reports whether it worked.
// Empty data leaves v untouched.
func decodeLenient(data json.RawMessage, v any) bool {
	if len(data) == 0 {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// DecodeActivePlayers reads a Player.GetActivePlayers result. Anything that
// is not an array decodes to no players.
func DecodeActivePlayers(result json.RawMessage) []ActivePlayer {
	var players []ActivePlayer
	if !decodeLenient(result, &players) {
		return nil
	}
	return players
}

// DecodeProperties reads an Application.GetProperties result.
func DecodeProperties(result json.RawMessage) ApplicationProperties {
	var props ApplicationProperties
	decodeLenient(result, &props)
	return props
}

// DecodeItem reads a Player.GetItem result.
func DecodeItem(result json.RawMessage) *Item {
	var res GetItemResult
	if !decodeLenient(result, &res) {
		return nil
	}
	return res.Item
}

// DecodePlayerEvent reads the data of a Player.On* notification.
func DecodePlayerEvent(data json.RawMessage) PlayerEventData {
	var ev PlayerEventData
	decodeLenient(data, &ev)
	return ev
}

// DecodeVolumeEvent reads the data of an Application.OnVolumeChanged notification.
func DecodeVolumeEvent(data json.RawMessage) VolumeEventData {
	var ev VolumeEventData
	decodeLenient(data, &ev)
	return ev
}

// SpeedResult is the Player.PlayPause result. Player.GetProperties asked
// for speed answers in the same shape.
type SpeedResult struct {
	Speed *int `json:"speed"`
}

// DecodeSpeed reads the player speed from a Player.PlayPause or
// Player.GetProperties result.
func DecodeSpeed(result json.RawMessage) (int, bool) {
	var res SpeedResult
	if !decodeLenient(result, &res) || res.Speed == nil {
		return 0, false
	}
	return *res.Speed, true
}

// DecodeVolume reads an Application.SetVolume result.
func DecodeVolume(result json.RawMessage) (int, bool) {
	var v *float64
	if !decodeLenient(result, &v) || v == nil {
		return 0, false
	}
	return RoundVolume(*v), true
}
