package reactor

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock is returned by a SocketProvider method that would have had
// to block to make progress. The reactor core never calls a provider method
// unless readiness (or non-blocking mode) says it won't block, but a
// SocketProvider implementation may still surface a race as ErrWouldBlock
// instead of blocking.
var ErrWouldBlock = iox.ErrWouldBlock

// ErrMore is kept for compatibility with iox's control-flow vocabulary.
// Nothing in this module's own SocketProvider implementations returns it:
// the wire format has no length prefix to resume, so there is nothing
// "more" to signal beyond what ErrWouldBlock already says.
var ErrMore = iox.ErrMore

var (
	// ErrAlreadyListening is returned by MessageServer.StartListening when
	// the server is already listening.
	ErrAlreadyListening = errors.New("reactor: server is already listening")

	// ErrNotListening is returned by MessageServer.StopListening when the
	// server isn't currently listening.
	ErrNotListening = errors.New("reactor: server is not listening")

	// ErrBindFailed wraps a SocketProvider.Bind/Listen failure from
	// MessageServer.StartListening (e.g. the port is already in use).
	ErrBindFailed = errors.New("reactor: failed to bind listen socket")

	// ErrAlreadyActive is returned by MessageClient.StartConnecting when the
	// client is already connecting or connected.
	ErrAlreadyActive = errors.New("reactor: client is already active")

	// ErrNotConnected is returned by MessageClient.Disconnect when the
	// client isn't in the Connected state.
	ErrNotConnected = errors.New("reactor: client is not connected")

	// ErrUnknownClient is returned by MessageServer accessors for a client
	// id that was never assigned or has since disconnected.
	ErrUnknownClient = errors.New("reactor: unknown client id")
)
