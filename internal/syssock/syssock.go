// Package syssock is the real, nonblocking SocketProvider backing
// cmd/reactorctl, implemented directly over golang.org/x/sys/unix rather
// than net.Conn so that connect completion and refusal can be observed the
// non-blocking way: writability plus SO_ERROR, not a returned error from a
// blocking Dial.
package syssock

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/readysock/reactor"
)

// Provider is a reactor.SocketProvider over real IPv4 stream sockets.
type Provider struct{}

// NewProvider constructs a Provider. It holds no state of its own: every
// socket it creates is tracked by the caller (MessageServer/MessageClient)
// via the SocketID (file descriptor) it returns.
func NewProvider() *Provider { return &Provider{} }

func resolve(addr reactor.Address) (unix.Sockaddr, error) {
	if addr.Host == "0.0.0.0" || addr.Host == "" {
		return &unix.SockaddrInet4{Port: int(addr.Port)}, nil
	}

	ips, err := net.LookupIP(addr.Host)
	if err != nil {
		return nil, fmt.Errorf("syssock: unable to resolve hostname %s: %w", addr.Host, err)
	}

	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			var sa unix.SockaddrInet4
			sa.Port = int(addr.Port)
			copy(sa.Addr[:], v4)
			return &sa, nil
		}
	}

	return nil, fmt.Errorf("syssock: no IPv4 address found for hostname %s", addr.Host)
}

// Create implements reactor.SocketProvider.
func (p *Provider) Create() (reactor.SocketID, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return 0, fmt.Errorf("syssock: failed to create socket: %w", err)
	}
	return reactor.SocketID(fd), nil
}

// SetNonblocking implements reactor.SocketProvider.
func (p *Provider) SetNonblocking(id reactor.SocketID, nonblocking bool) error {
	if err := unix.SetNonblock(int(id), nonblocking); err != nil {
		return fmt.Errorf("syssock: unable to set non-blocking: %w", err)
	}
	return nil
}

// Connect implements reactor.SocketProvider. A non-blocking connect that
// hasn't completed yet surfaces as unix.EINPROGRESS, which this method
// swallows: the caller learns the outcome later via ConnectionWasRefused
// once the socket becomes writable.
func (p *Provider) Connect(id reactor.SocketID, addr reactor.Address) error {
	sa, err := resolve(addr)
	if err != nil {
		return err
	}
	if err := unix.Connect(int(id), sa); err != nil {
		if err == unix.EINPROGRESS {
			return nil
		}
		return fmt.Errorf("syssock: unable to connect: %w", err)
	}
	return nil
}

// ConnectionWasRefused implements reactor.SocketProvider by reading
// SO_ERROR once the socket has become writable.
func (p *Provider) ConnectionWasRefused(id reactor.SocketID) (bool, error) {
	errno, err := unix.GetsockoptInt(int(id), unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return false, fmt.Errorf("syssock: getsockopt(SO_ERROR) failed: %w", err)
	}
	switch errno {
	case 0:
		return false, nil
	case int(unix.ECONNREFUSED):
		return true, nil
	default:
		return false, fmt.Errorf("syssock: connect failed: %w", unix.Errno(errno))
	}
}

// Bind implements reactor.SocketProvider. SO_REUSEADDR is set first so a
// restarted listener isn't locked out of its port by lingering TIME_WAIT
// connections.
func (p *Provider) Bind(id reactor.SocketID, addr reactor.Address) error {
	sa, err := resolve(addr)
	if err != nil {
		return err
	}
	if err := unix.SetsockoptInt(int(id), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("syssock: unable to set SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(int(id), sa); err != nil {
		return fmt.Errorf("syssock: unable to bind socket: %w", err)
	}
	return nil
}

// Listen implements reactor.SocketProvider.
func (p *Provider) Listen(id reactor.SocketID, backlog int) error {
	if err := unix.Listen(int(id), backlog); err != nil {
		return fmt.Errorf("syssock: unable to listen: %w", err)
	}
	return nil
}

// Accept implements reactor.SocketProvider.
func (p *Provider) Accept(id reactor.SocketID) (reactor.SocketID, error) {
	nfd, _, err := unix.Accept4(int(id), unix.SOCK_NONBLOCK)
	if err != nil {
		return 0, fmt.Errorf("syssock: accept failed: %w", err)
	}
	return reactor.SocketID(nfd), nil
}

// Send implements reactor.SocketProvider. A post-select write race to
// EAGAIN/EWOULDBLOCK surfaces as reactor.ErrWouldBlock rather than a
// generic failure, so the reactor core treats it as "not ready this
// round" instead of disconnecting a healthy peer.
func (p *Provider) Send(id reactor.SocketID, buf []byte) (int, error) {
	n, err := unix.Write(int(id), buf)
	if err != nil {
		if isWouldBlock(err) {
			return 0, reactor.ErrWouldBlock
		}
		return 0, fmt.Errorf("syssock: send failed: %w", err)
	}
	return n, nil
}

// Recv implements reactor.SocketProvider. See Send for the EAGAIN/
// EWOULDBLOCK -> reactor.ErrWouldBlock mapping.
func (p *Provider) Recv(id reactor.SocketID, buf []byte) (int, error) {
	n, err := unix.Read(int(id), buf)
	if err != nil {
		if isWouldBlock(err) {
			return 0, reactor.ErrWouldBlock
		}
		return 0, fmt.Errorf("syssock: recv failed: %w", err)
	}
	return n, nil
}

func isWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

// Close implements reactor.SocketProvider.
func (p *Provider) Close(id reactor.SocketID) error {
	if err := unix.Close(int(id)); err != nil {
		return fmt.Errorf("syssock: error closing socket: %w", err)
	}
	return nil
}
