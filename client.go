package reactor

import "github.com/go-logr/logr"

// clientState is MessageClient's Idle/Connecting/Connected sub-state.
type clientState int

const (
	clientIdle clientState = iota
	clientConnecting
	clientConnected
)

// MessageClient connects asynchronously to a MessageServer, receives framed
// messages, and queues outgoing framed messages.
//
// MessageClient implements EventSink and is driven by a Loop alongside any
// number of other MessageClients and/or a MessageServer.
type MessageClient struct {
	sockets SocketProvider
	opts    clientOptions
	events  ClientEvents
	logger  logr.Logger

	state    clientState
	socketID SocketID

	sender   QueuedMessageSender
	receiver *MessageReceiver
}

// NewMessageClient constructs a MessageClient over the given SocketProvider
// and event callbacks. The client is Idle until StartConnecting is called.
func NewMessageClient(sockets SocketProvider, events ClientEvents, opts ...ClientOption) *MessageClient {
	o := defaultClientOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &MessageClient{
		sockets:  sockets,
		opts:     o,
		events:   events,
		logger:   o.logger,
		receiver: NewMessageReceiver(o.receiver...),
	}
}

// StartConnecting resolves "localhost", creates a socket, sets it
// non-blocking, and issues an asynchronous connect to port.
// Precondition: Idle.
func (c *MessageClient) StartConnecting(port uint16) error {
	if c.state != clientIdle {
		return ErrAlreadyActive
	}

	id, err := c.sockets.Create()
	if err != nil {
		return err
	}
	if err := c.sockets.SetNonblocking(id, true); err != nil {
		_ = c.sockets.Close(id)
		return err
	}
	if err := c.sockets.Connect(id, LocalhostAddress(port)); err != nil {
		_ = c.sockets.Close(id)
		return err
	}

	c.socketID = id
	c.state = clientConnecting
	return nil
}

// Disconnect closes the socket and returns to Idle. Precondition: Connected.
func (c *MessageClient) Disconnect() error {
	if c.state != clientConnected {
		return ErrNotConnected
	}
	err := c.sockets.Close(c.socketID)
	c.state = clientIdle
	return err
}

// QueueMessage copies message into the client's outgoing queue.
func (c *MessageClient) QueueMessage(message []byte) {
	c.sender.Enqueue(message)
}

// IsActive reports whether the client is Connecting or Connected.
func (c *MessageClient) IsActive() bool {
	return c.state != clientIdle
}

// IsConnected reports whether the client is Connected.
func (c *MessageClient) IsConnected() bool {
	return c.state == clientConnected
}

// IsSendingAMessage reports whether there is a message queued or in flight.
func (c *MessageClient) IsSendingAMessage() bool {
	return c.sender.Busy()
}

// SetupSelect implements EventSink.
func (c *MessageClient) SetupSelect(pre PreSelect) {
	switch c.state {
	case clientIdle:
		return
	case clientConnecting:
		pre.SetWrite(c.socketID)
	case clientConnected:
		if c.sender.Busy() {
			pre.SetWrite(c.socketID)
		}
		pre.SetRead(c.socketID)
	}
}

// HandleSelect implements EventSink. The client performs at most one of
// send-step or receive-step per iteration: send takes precedence when
// busy.
func (c *MessageClient) HandleSelect(post PostSelect) {
	switch c.state {
	case clientIdle:
		return
	case clientConnecting:
		c.handleConnecting(post)
	case clientConnected:
		if c.sender.Busy() {
			c.handleSending(post)
		} else {
			c.handleReceiving(post)
		}
	}
}

func (c *MessageClient) handleConnecting(post PostSelect) {
	if !post.WriteIsSet(c.socketID) {
		return
	}

	refused, err := c.sockets.ConnectionWasRefused(c.socketID)
	if err != nil {
		c.logger.Error(err, "failed to query connect result")
		return
	}

	if refused {
		_ = c.sockets.Close(c.socketID)
		c.state = clientIdle
		c.logger.V(1).Info("connection refused")
		c.events.connectionRefused()
		return
	}

	c.state = clientConnected
	c.logger.V(1).Info("connected")
	c.events.connected()
}

func (c *MessageClient) handleSending(post PostSelect) {
	if !c.sender.SendStep(c.sockets, c.socketID, post) {
		c.closeAfterFailure()
	}
}

func (c *MessageClient) handleReceiving(post PostSelect) {
	if !post.ReadIsSet(c.socketID) {
		return
	}

	healthy := c.receiver.ReceiveStep(c.sockets, c.socketID, func(message []byte) {
		c.events.gotMessage(message)
	})

	if !healthy {
		c.closeAfterFailure()
	}
}

// closeAfterFailure handles an unhealthy send or receive by closing the
// socket and returning to Idle. It does not emit ConnectionRefused: that
// event is reserved for a refused connect attempt, not an abrupt peer
// close surfacing as an unhealthy read/write.
func (c *MessageClient) closeAfterFailure() {
	_ = c.sockets.Close(c.socketID)
	c.state = clientIdle
	c.logger.V(1).Info("connection closed by peer")
}
