package reactor

import "errors"

// MessageSender owns a reference to a single outgoing message and a cursor
// tracking how much of it has been sent. It does not own the bytes it
// sends: the caller (typically QueuedMessageSender) is responsible for
// keeping the slice alive and unmodified for the entire send.
type MessageSender struct {
	busy       bool
	message    []byte
	nBytesSent int
}

// Enqueue arms the sender with message. Precondition: the sender must be
// idle (Busy() == false); this is a programmer contract, not a recoverable
// error.
func (s *MessageSender) Enqueue(message []byte) {
	if s.Busy() {
		panic("reactor: MessageSender.Enqueue called while already sending a message")
	}
	s.busy = true
	s.message = message
	s.nBytesSent = 0
}

// Busy reports whether the sender currently has an outgoing message.
func (s *MessageSender) Busy() bool {
	return s.busy
}

// SendStep issues a single send for the unsent tail of the current message.
// It returns false ("unhealthy") when the provider reports the connection
// is no longer usable. Going idle (Busy() becoming false) is the only way
// the sender will accept a new message.
func (s *MessageSender) SendStep(sockets SocketProvider, id SocketID) bool {
	if !s.Busy() {
		panic("reactor: MessageSender.SendStep called while idle")
	}

	n, err := sockets.Send(id, s.message[s.nBytesSent:])
	if errors.Is(err, ErrWouldBlock) {
		// Readiness said id was writable, but the provider raced and
		// couldn't actually accept anything. No progress, not a failure.
		return true
	}
	if err != nil || n <= 0 {
		return false
	}

	s.nBytesSent += n
	if s.nBytesSent == len(s.message) {
		s.busy = false
		s.message = nil
		s.nBytesSent = 0
	}
	return true
}
