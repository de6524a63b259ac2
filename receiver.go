package reactor

import (
	"bytes"
	"errors"
)

// MessageReceiver owns a growable receive buffer and delivers complete
// null-terminated messages one at a time.
//
// MessageReceiver does not know about sockets beyond the SocketProvider
// it's handed a SocketID for on each call; it holds no reference to the
// provider between calls.
type MessageReceiver struct {
	opts receiverOptions

	buf        []byte
	nBytesRead int
}

// NewMessageReceiver constructs a MessageReceiver ready to accept its first
// ReceiveStep call.
func NewMessageReceiver(opts ...ReceiverOption) *MessageReceiver {
	o := defaultReceiverOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &MessageReceiver{opts: o}
}

// ensureCapacity grows buf so that at least the minimum chunk size is free
// past nBytesRead. The buffer only ever grows. Returns false if growth
// would exceed an optional configured cap.
func (r *MessageReceiver) ensureCapacity() bool {
	remaining := len(r.buf) - r.nBytesRead

	if remaining >= r.opts.minChunkSize {
		return true
	}

	newSize := r.nBytesRead + r.opts.minChunkSize

	if r.opts.maxBufferSize > 0 && newSize > r.opts.maxBufferSize {
		return false
	}

	grown := make([]byte, newSize)
	copy(grown, r.buf[:r.nBytesRead])
	r.buf = grown
	return true
}

// ReceiveStep issues a single recv and, if the chunk it returns contains a
// null byte, invokes handler exactly once with the message running from the
// buffer's origin through the first null byte in that chunk. Only the bytes
// returned by this call's recv are scanned for a terminator. It returns
// false ("unhealthy") when the provider reports the connection is no longer
// usable; the caller must then disconnect.
//
// At most one message is delivered per call even if the chunk read this
// round contains more than one terminator; any bytes after the first
// terminator are preserved as the start of the next message, and a
// terminator among those preserved bytes is not looked for again by later
// calls. Delivering
// one message per step keeps fairness across many sockets a property of
// the event loop, not of the receiver.
func (r *MessageReceiver) ReceiveStep(sockets SocketProvider, id SocketID, handler func(message []byte)) bool {
	if !r.ensureCapacity() {
		return false
	}

	chunk := r.buf[r.nBytesRead:]
	n, err := sockets.Recv(id, chunk)
	if errors.Is(err, ErrWouldBlock) {
		// Readiness said id was readable, but the provider raced and
		// couldn't actually deliver anything. No progress, not a failure.
		return true
	}
	if err != nil || n <= 0 {
		return false
	}

	received := chunk[:n]
	if idx := bytes.IndexByte(received, 0); idx >= 0 {
		nMessageBytes := idx + 1
		nExtraBytes := n - nMessageBytes
		r.nBytesRead += nMessageBytes

		message := r.buf[:r.nBytesRead]
		handler(message)

		// Compact: the nExtraBytes that followed the terminator in this
		// same read become the prefix of the next message.
		copy(r.buf[:nExtraBytes], r.buf[r.nBytesRead:r.nBytesRead+nExtraBytes])
		r.nBytesRead = nExtraBytes
		return true
	}

	r.nBytesRead += n
	return true
}
