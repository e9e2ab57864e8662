package client

// connStateText maps a ConnectionState to the user-visible status-line
// text: connecting, syncing, live, connection lost and retrying, and
// signaling unreachable. The version-mismatch and history-trimmed notices
// are not connection states; they are set through SetStatusText.
func connStateText(s ConnectionState) string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSyncing:
		return "syncing"
	case StateLive:
		return "live"
	case StateReconnecting:
		return "connection lost; retrying"
	case StateDisconnected:
		return "signaling unreachable"
	default:
		return "unknown"
	}
}

// SetStatusText overrides the status line's trailing message, used for
// one-off notices like "version mismatch: please update" or "history
// trimmed" that don't map to a ConnectionState transition.
func (m *Model) SetStatusText(text string) {
	m.statusText = text
}
