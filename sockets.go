package reactor

import "fmt"

// SocketID is an opaque handle a SocketProvider assigns to a socket it
// creates. The reactor core treats it as an opaque comparable value; real
// providers typically make it the underlying file descriptor.
type SocketID int

// Address carries an IPv4 address and a 16-bit port. "localhost" and the
// IPv4 wildcard (0.0.0.0) are the only addressing conventions the core
// relies on.
type Address struct {
	Host string // e.g. "0.0.0.0" or "localhost"
	Port uint16
}

func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// WildcardAddress returns the IPv4 wildcard bind address for port.
func WildcardAddress(port uint16) Address {
	return Address{Host: "0.0.0.0", Port: port}
}

// LocalhostAddress returns the loopback connect address for port.
func LocalhostAddress(port uint16) Address {
	return Address{Host: "localhost", Port: port}
}

// SocketProvider is the external collaborator the reactor core uses for all
// socket operations. It is never required to block: every method is called
// only when readiness indicates the call will not block, or the socket has
// been set non-blocking. A conforming implementation may still return
// ErrWouldBlock from Send/Recv instead of blocking on a race.
//
// Implementations live outside the core: callers supply their own, such
// as internal/fakesock for tests or internal/syssock for real sockets.
type SocketProvider interface {
	// Create allocates a new socket and returns its id.
	Create() (SocketID, error)

	// SetNonblocking toggles non-blocking mode on id.
	SetNonblocking(id SocketID, nonblocking bool) error

	// Connect issues a (possibly asynchronous, non-blocking) connect to
	// addr on id.
	Connect(id SocketID, addr Address) error

	// ConnectionWasRefused reports whether an in-progress non-blocking
	// connect on id was refused. Only meaningful after id has become
	// writable while the caller is in the Connecting state.
	ConnectionWasRefused(id SocketID) (bool, error)

	// Bind binds id to addr. May fail, e.g. because the port is in use.
	Bind(id SocketID, addr Address) error

	// Listen marks id as a listening socket with the given backlog.
	Listen(id SocketID, backlog int) error

	// Accept accepts one pending connection on the listening socket id and
	// returns the new socket's id.
	Accept(id SocketID) (SocketID, error)

	// Send writes up to len(buf) bytes to id. Returns the number of bytes
	// accepted (n > 0), peer EOF (n == 0), or an error (n < 0 is not used
	// in Go; an error return signals failure instead).
	Send(id SocketID, buf []byte) (int, error)

	// Recv reads up to len(buf) bytes from id. Same n/error convention as
	// Send.
	Recv(id SocketID, buf []byte) (int, error)

	// Close releases id. The reactor core closes every socket id it
	// allocates exactly once.
	Close(id SocketID) error
}

// PreSelect is the pre-select phase of the readiness protocol: endpoints
// declare which sockets they're interested in reading or writing.
type PreSelect interface {
	SetRead(id SocketID)
	SetWrite(id SocketID)
}

// PostSelect is the post-select phase: endpoints query which of their
// sockets turned out to be ready.
type PostSelect interface {
	ReadIsSet(id SocketID) bool
	WriteIsSet(id SocketID) bool
}

// Selector drives one readiness wait per iteration. Loop.Step calls its
// methods in begin→setup→call→handle→end order; setup and handle are never
// concurrent with the wait performed by Select.
type Selector interface {
	// BeginSelect starts a new readiness iteration.
	BeginSelect()

	// PreSelectParams returns the pre-select view; valid only between
	// BeginSelect and Select.
	PreSelectParams() PreSelect

	// Select blocks (the reactor's one allowed suspension point) until at
	// least one registered interest is ready, or the implementation's own
	// timeout elapses.
	Select() error

	// PostSelectParams returns the post-select view; valid only between
	// Select and EndSelect.
	PostSelectParams() PostSelect

	// EndSelect closes out the iteration.
	EndSelect()
}

// EventSink is anything that participates in a readiness iteration:
// MessageServer and MessageClient both implement it.
type EventSink interface {
	SetupSelect(pre PreSelect)
	HandleSelect(post PostSelect)
}
