package wsutil

import "log/slog"

// SafeSend sends data to a channel without panicking if the channel is closed.
// If the channel is full or closed, the send is skipped and the drop is logged.
func SafeSend(ch chan []byte, data []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("send on closed channel", "tag", "wsutil", "panic", r)
		}
	}()
	select {
	case ch <- data:
		return true
	default:
		slog.Warn("send buffer full, message dropped", "tag", "wsutil", "bytes", len(data))
		return false
	}
}
