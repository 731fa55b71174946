package server

import (
	"strings"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// inbound is a decoded frame waiting for the hub's event loop.
type inbound struct {
	client  *Client
	frame   protocol.Frame
	request protocol.Request
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
