package fakesock

import (
	"errors"
	"fmt"

	"github.com/readysock/reactor"
)

// ErrPortInUse is returned by Provider.Bind when another socket is already
// bound to the requested port.
var ErrPortInUse = errors.New("fakesock: port already in use")

// ErrInjected is returned by Send/Recv once a scripted byte budget set by
// SetNBytesBeforeSendError/SetNBytesBeforeRecvError has been exhausted.
var ErrInjected = errors.New("fakesock: injected send/recv error")

const defaultBufferCapacity = 2

// socket is the per-id state behind one SocketID.
type socket struct {
	boundPort   *uint16
	refused     bool
	listening   bool
	nonblocking bool
	closed      bool
	connectPort *uint16
	remote      *reactor.SocketID
	nBeforeRecv *int
	nBeforeSend *int
	out         ringBuffer
}

func (s *socket) isConnecting() bool { return s.connectPort != nil }

// Provider is a deterministic, single-threaded SocketProvider over an
// in-memory "wire." Two sockets become peers only through Accept, once a
// Connect targeting a bound+listening port has been resolved by a Selector
// round.
type Provider struct {
	bufferCapacity int
	sockets        []*socket // nil entry == free slot
}

// Option configures a Provider.
type Option func(*Provider)

// WithBufferCapacity overrides the per-socket output buffer size. The
// default is a deliberately tiny 2 bytes so that ordinary test payloads
// exercise partial send/receive.
func WithBufferCapacity(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.bufferCapacity = n
		}
	}
}

// NewProvider constructs an empty Provider.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{bufferCapacity: defaultBufferCapacity}
	for _, fn := range opts {
		fn(p)
	}
	return p
}

// Allocated returns the number of currently open sockets. Tests assert it
// returns to zero once a scenario has released everything it opened.
func (p *Provider) Allocated() int {
	n := 0
	for _, s := range p.sockets {
		if s != nil {
			n++
		}
	}
	return n
}

func (p *Provider) allocate() reactor.SocketID {
	for i, s := range p.sockets {
		if s == nil {
			p.sockets[i] = &socket{out: newRingBuffer(p.bufferCapacity)}
			return reactor.SocketID(i)
		}
	}
	id := reactor.SocketID(len(p.sockets))
	p.sockets = append(p.sockets, &socket{out: newRingBuffer(p.bufferCapacity)})
	return id
}

func (p *Provider) deallocate(id reactor.SocketID) {
	p.sockets[id] = nil
}

func (p *Provider) socket(id reactor.SocketID) *socket {
	s := p.sockets[id]
	if s == nil {
		panic(fmt.Sprintf("fakesock: use of closed/unknown socket %d", id))
	}
	return s
}

func (p *Provider) anyBoundToPort(port uint16) bool {
	for _, s := range p.sockets {
		if s != nil && s.boundPort != nil && *s.boundPort == port {
			return true
		}
	}
	return false
}

func (p *Provider) findListeningOnPort(port uint16) (reactor.SocketID, bool) {
	for i, s := range p.sockets {
		if s != nil && s.listening && s.boundPort != nil && *s.boundPort == port {
			return reactor.SocketID(i), true
		}
	}
	return 0, false
}

// findPendingAccept returns the id of a socket whose remote marker points at
// listenID, meaning it connected to that port and is waiting for Accept.
func (p *Provider) findPendingAccept(listenID reactor.SocketID) (reactor.SocketID, bool) {
	for i, s := range p.sockets {
		if s != nil && s.remote != nil && *s.remote == listenID {
			return reactor.SocketID(i), true
		}
	}
	return 0, false
}

// Create implements reactor.SocketProvider.
func (p *Provider) Create() (reactor.SocketID, error) {
	return p.allocate(), nil
}

// SetNonblocking implements reactor.SocketProvider.
func (p *Provider) SetNonblocking(id reactor.SocketID, nonblocking bool) error {
	p.socket(id).nonblocking = nonblocking
	return nil
}

// Connect implements reactor.SocketProvider. Resolution (accept vs
// refusal) happens lazily, the next time a Selector checks writability
// for id.
func (p *Provider) Connect(id reactor.SocketID, addr reactor.Address) error {
	s := p.socket(id)
	if !s.nonblocking {
		panic("fakesock: Connect called on a blocking socket")
	}
	if s.isConnecting() {
		panic("fakesock: Connect called twice on the same socket")
	}
	port := addr.Port
	s.connectPort = &port
	return nil
}

// ConnectionWasRefused implements reactor.SocketProvider.
func (p *Provider) ConnectionWasRefused(id reactor.SocketID) (bool, error) {
	return p.socket(id).refused, nil
}

// Bind implements reactor.SocketProvider.
func (p *Provider) Bind(id reactor.SocketID, addr reactor.Address) error {
	if p.anyBoundToPort(addr.Port) {
		return ErrPortInUse
	}
	port := addr.Port
	p.socket(id).boundPort = &port
	return nil
}

// Listen implements reactor.SocketProvider.
func (p *Provider) Listen(id reactor.SocketID, _ int) error {
	s := p.socket(id)
	if s.boundPort == nil {
		panic("fakesock: Listen called on an unbound socket")
	}
	s.listening = true
	return nil
}

// Accept implements reactor.SocketProvider. Precondition: a Selector round
// has reported id readable, meaning findPendingAccept(id) will find a peer.
func (p *Provider) Accept(id reactor.SocketID) (reactor.SocketID, error) {
	clientID, ok := p.findPendingAccept(id)
	if !ok {
		panic("fakesock: Accept called with nothing pending")
	}

	newID := p.allocate()
	p.sockets[clientID].remote = &newID
	remotePeer := clientID
	p.sockets[newID].remote = &remotePeer
	return newID, nil
}

// Send implements reactor.SocketProvider.
func (p *Provider) Send(id reactor.SocketID, buf []byte) (int, error) {
	s := p.socket(id)

	if s.remote != nil && p.socket(*s.remote).closed {
		return 0, nil // peer closed: report EOF
	}

	if s.nBeforeSend != nil {
		if *s.nBeforeSend == 0 {
			return 0, ErrInjected
		}
		limit := len(buf)
		if *s.nBeforeSend < limit {
			limit = *s.nBeforeSend
		}
		n := s.out.put(buf[:limit])
		*s.nBeforeSend -= n
		return n, nil
	}

	return s.out.put(buf), nil
}

// Recv implements reactor.SocketProvider.
func (p *Provider) Recv(id reactor.SocketID, buf []byte) (int, error) {
	s := p.socket(id)

	if s.remote == nil {
		panic("fakesock: Recv called on a socket with no peer")
	}
	remote := p.socket(*s.remote)

	limit := len(buf)
	if s.nBeforeRecv != nil {
		if *s.nBeforeRecv == 0 {
			return 0, ErrInjected
		}
		if *s.nBeforeRecv < limit {
			limit = *s.nBeforeRecv
		}
	}
	n := remote.out.get(buf[:limit])
	if s.nBeforeRecv != nil {
		*s.nBeforeRecv -= n
	}
	return n, nil
}

// Close implements reactor.SocketProvider.
func (p *Provider) Close(id reactor.SocketID) error {
	s := p.socket(id)
	if s.closed {
		panic("fakesock: Close called twice on the same socket")
	}

	if s.remote != nil {
		remote := p.socket(*s.remote)
		if remote.closed {
			p.deallocate(id)
			p.deallocate(*s.remote)
		} else {
			s.closed = true
		}
		return nil
	}

	// Listening, or created but never connected/listened (e.g. a refused
	// connect attempt): nothing references it, free it immediately.
	p.deallocate(id)
	return nil
}

// SetNBytesBeforeRecvError scripts id's Recv to return ErrInjected once n
// bytes have been delivered across however many Recv calls it takes.
func (p *Provider) SetNBytesBeforeRecvError(id reactor.SocketID, n int) {
	p.socket(id).nBeforeRecv = &n
}

// SetNBytesBeforeSendError scripts id's Send the same way for outgoing
// bytes.
func (p *Provider) SetNBytesBeforeSendError(id reactor.SocketID, n int) {
	p.socket(id).nBeforeSend = &n
}
