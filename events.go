package reactor

// ClientID identifies a server-side client slot. It is stable for the
// lifetime of a connection and reused once the slot is freed: the next
// accept may assign the same id.
type ClientID int

// ServerEvents is a sum of named callbacks rather than an interface with
// a deep hierarchy; callers leave a field nil to opt out of that event.
type ServerEvents struct {
	// GotMessage is called with the completed message, including its
	// trailing null byte. The slice is only valid for the duration of the
	// call.
	GotMessage func(id ClientID, message []byte)

	// ClientConnected is called once a new connection has been accepted,
	// before any GotMessage or ClientDisconnected call for that id.
	ClientConnected func(id ClientID)

	// ClientDisconnected is called exactly once per successful
	// ClientConnected, unless the server is destroyed first.
	ClientDisconnected func(id ClientID)
}

func (e ServerEvents) gotMessage(id ClientID, message []byte) {
	if e.GotMessage != nil {
		e.GotMessage(id, message)
	}
}

func (e ServerEvents) clientConnected(id ClientID) {
	if e.ClientConnected != nil {
		e.ClientConnected(id)
	}
}

func (e ServerEvents) clientDisconnected(id ClientID) {
	if e.ClientDisconnected != nil {
		e.ClientDisconnected(id)
	}
}

// ClientEvents is the client-side analogue of ServerEvents.
type ClientEvents struct {
	// ConnectionRefused is called when a non-blocking connect attempt was
	// refused by the peer.
	ConnectionRefused func()

	// Connected is optional: it is called
	// once a connect attempt succeeds, before any GotMessage call.
	Connected func()

	// GotMessage is called with each completed message, including its
	// trailing null byte. Valid only for the duration of the call.
	GotMessage func(message []byte)
}

func (e ClientEvents) connectionRefused() {
	if e.ConnectionRefused != nil {
		e.ConnectionRefused()
	}
}

func (e ClientEvents) connected() {
	if e.Connected != nil {
		e.Connected()
	}
}

func (e ClientEvents) gotMessage(message []byte) {
	if e.GotMessage != nil {
		e.GotMessage(message)
	}
}
