package ipc

import (
	"deckhand/internal/daemon"
	"deckhand/internal/deck"
	"deckhand/internal/session"
)

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse carries daemon and session status.
type StatusResponse = daemon.Status

// ClipsRequest selects a slot; zero means the active slot.
type ClipsRequest struct {
	Slot int `json:"slot"`
}

// ClipsResponse lists the cached clips of one slot.
type ClipsResponse struct {
	Slot  int         `json:"slot"`
	Clips []deck.Clip `json:"clips"`
}

// VariablesRequest fetches the display variables.
type VariablesRequest struct{}

// VariablesResponse maps variable names to rendered values.
type VariablesResponse struct {
	Variables map[string]string `json:"variables"`
}

// ActionRequest runs one session action.
type ActionRequest struct {
	Action session.Action `json:"action"`
}

// ActionResponse reports the action result.
type ActionResponse struct {
	Result session.Result `json:"result"`
}

// ModeRequest switches timecode delivery.
type ModeRequest struct {
	Mode           string `json:"mode"`
	PollIntervalMS int    `json:"poll_interval_ms"`
}

// ModeResponse reports the mode now in effect.
type ModeResponse struct {
	Mode          string `json:"mode"`
	PollInterval  string `json:"poll_interval"`
	PollerRunning bool   `json:"poller_running"`
}

// ConnectRequest opens the device connection.
type ConnectRequest struct{}

// ConnectResponse reports the session status after connecting.
type ConnectResponse struct {
	Status  session.Status `json:"status"`
	Message string         `json:"message"`
}

// DisconnectRequest drops the device connection.
type DisconnectRequest struct{}

// DisconnectResponse acknowledges a disconnect.
type DisconnectResponse struct {
	Disconnected bool `json:"disconnected"`
}

// StopRequest asks the daemon process to exit.
type StopRequest struct{}

// StopResponse acknowledges a stop request.
type StopResponse struct {
	Stopping bool `json:"stopping"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse contains the notification test result.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
