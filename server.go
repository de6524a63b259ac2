package reactor

import "github.com/go-logr/logr"

// clientSlot is a server-side, index-addressable record: empty (no
// connection) or holding a connected client's socket, receiver and sender
// state. Index into MessageServer.clients is the ClientID.
type clientSlot struct {
	connected bool
	socketID  SocketID
	receiver  *MessageReceiver
	sender    QueuedMessageSender
}

// MessageServer accepts connections, receives framed messages from many
// clients, and queues outgoing framed messages to them.
//
// MessageServer implements EventSink and is driven by a Loop alongside any
// number of MessageClients.
type MessageServer struct {
	sockets SocketProvider
	opts    serverOptions
	events  ServerEvents
	logger  logr.Logger

	listening      bool
	listenSocketID SocketID

	clients []clientSlot
}

// NewMessageServer constructs a MessageServer over the given SocketProvider
// and event callbacks. The server does not start listening until
// StartListening is called.
func NewMessageServer(sockets SocketProvider, events ServerEvents, opts ...ServerOption) *MessageServer {
	o := defaultServerOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &MessageServer{
		sockets: sockets,
		opts:    o,
		events:  events,
		logger:  o.logger,
	}
}

// StartListening creates a listen socket, binds it to the IPv4 wildcard
// address on port, and starts listening. Any bind/listen
// failure surfaces as a wrapped ErrBindFailed.
func (s *MessageServer) StartListening(port uint16) error {
	if s.listening {
		return ErrAlreadyListening
	}

	id, err := s.sockets.Create()
	if err != nil {
		return wrapBindErr(err)
	}

	if err := s.sockets.Bind(id, WildcardAddress(port)); err != nil {
		_ = s.sockets.Close(id)
		s.logger.Error(err, "failed to bind listen socket", "port", port)
		return wrapBindErr(err)
	}

	if err := s.sockets.Listen(id, s.opts.backlog); err != nil {
		_ = s.sockets.Close(id)
		s.logger.Error(err, "failed to listen", "port", port)
		return wrapBindErr(err)
	}

	s.listenSocketID = id
	s.listening = true
	return nil
}

func wrapBindErr(err error) error {
	if err == nil {
		return ErrBindFailed
	}
	return &bindError{err: err}
}

type bindError struct{ err error }

func (e *bindError) Error() string { return "reactor: failed to bind listen socket: " + e.err.Error() }
func (e *bindError) Unwrap() []error { return []error{ErrBindFailed, e.err} }

// StopListening closes the listen socket. Existing client connections are
// unaffected.
func (s *MessageServer) StopListening() error {
	if !s.listening {
		return ErrNotListening
	}
	if err := s.sockets.Close(s.listenSocketID); err != nil {
		return err
	}
	s.listening = false
	return nil
}

// IsActive reports whether the server is listening or has any connected
// client.
func (s *MessageServer) IsActive() bool {
	return s.listening || s.NClients() != 0
}

// NClients returns the number of currently connected clients.
func (s *MessageServer) NClients() int {
	n := 0
	for _, c := range s.clients {
		if c.connected {
			n++
		}
	}
	return n
}

// ClientIDs returns the ids of all currently connected clients, in
// ascending order.
func (s *MessageServer) ClientIDs() []ClientID {
	var ids []ClientID
	for i, c := range s.clients {
		if c.connected {
			ids = append(ids, ClientID(i))
		}
	}
	return ids
}

// ClientSocketID returns the socket id for a connected client.
func (s *MessageServer) ClientSocketID(id ClientID) (SocketID, error) {
	c, err := s.client(id)
	if err != nil {
		return 0, err
	}
	return c.socketID, nil
}

// IsSendingToClient reports whether there is a message queued or in flight
// for the given client.
func (s *MessageServer) IsSendingToClient(id ClientID) bool {
	c, err := s.client(id)
	if err != nil {
		return false
	}
	return c.sender.Busy()
}

// QueueMessageToClient copies message into the client's outgoing queue.
func (s *MessageServer) QueueMessageToClient(id ClientID, message []byte) error {
	c, err := s.client(id)
	if err != nil {
		return err
	}
	c.sender.Enqueue(message)
	return nil
}

func (s *MessageServer) client(id ClientID) (*clientSlot, error) {
	if id < 0 || int(id) >= len(s.clients) || !s.clients[id].connected {
		return nil, ErrUnknownClient
	}
	return &s.clients[id], nil
}

// SetupSelect implements EventSink.
func (s *MessageServer) SetupSelect(pre PreSelect) {
	if s.listening {
		pre.SetRead(s.listenSocketID)
	}

	for i := range s.clients {
		c := &s.clients[i]
		if !c.connected {
			continue
		}
		if c.sender.Busy() {
			pre.SetWrite(c.socketID)
		}
		pre.SetRead(c.socketID)
	}
}

// HandleSelect implements EventSink. Clients are processed in ascending
// id order; a client's send is attempted before its receive, and a send
// failure preempts that client's receive for this iteration.
func (s *MessageServer) HandleSelect(post PostSelect) {
	for i := range s.clients {
		c := &s.clients[i]
		if !c.connected {
			continue
		}

		id := ClientID(i)

		if c.sender.Busy() {
			if !c.sender.SendStep(s.sockets, c.socketID, post) {
				s.disconnectClient(id)
				continue
			}
		}

		if c.connected {
			s.handleReceivingMessage(id, post)
		}
	}

	if s.listening && post.ReadIsSet(s.listenSocketID) {
		s.acceptOne()
	}
}

func (s *MessageServer) handleReceivingMessage(id ClientID, post PostSelect) {
	c := &s.clients[id]

	if !post.ReadIsSet(c.socketID) {
		return
	}

	healthy := c.receiver.ReceiveStep(s.sockets, c.socketID, func(message []byte) {
		s.events.gotMessage(id, message)
	})

	if !healthy {
		s.disconnectClient(id)
	}
}

func (s *MessageServer) disconnectClient(id ClientID) {
	c := &s.clients[id]
	socketID := c.socketID
	*c = clientSlot{}

	if err := s.sockets.Close(socketID); err != nil {
		s.logger.Error(err, "failed to close client socket", "clientID", id)
	}

	s.logger.V(1).Info("client disconnected", "clientID", id)
	s.events.clientDisconnected(id)
}

func (s *MessageServer) acceptOne() {
	index := -1
	for i, c := range s.clients {
		if !c.connected {
			index = i
			break
		}
	}
	if index == -1 {
		index = len(s.clients)
		s.clients = append(s.clients, clientSlot{})
	}

	socketID, err := s.sockets.Accept(s.listenSocketID)
	if err != nil {
		s.logger.Error(err, "failed to accept connection")
		return
	}

	s.clients[index] = clientSlot{
		connected: true,
		socketID:  socketID,
		receiver:  NewMessageReceiver(s.opts.receiver...),
	}

	id := ClientID(index)
	s.logger.V(1).Info("client connected", "clientID", id)
	s.events.clientConnected(id)
}

// Close closes the listen socket (if any) and every connected client's
// socket.
func (s *MessageServer) Close() error {
	var firstErr error

	if s.listening {
		if err := s.sockets.Close(s.listenSocketID); err != nil && firstErr == nil {
			firstErr = err
		}
		s.listening = false
	}

	for i := range s.clients {
		c := &s.clients[i]
		if !c.connected {
			continue
		}
		socketID := c.socketID
		*c = clientSlot{}
		if err := s.sockets.Close(socketID); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
