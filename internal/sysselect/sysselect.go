// Package sysselect is the real Selector backing cmd/reactorctl, built
// directly on unix.Select.
package sysselect

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/readysock/reactor"
)

const fdBits = 64

// defaultPollInterval bounds how long a single Select call may block so
// that reactor.Loop.Run can notice context cancellation between iterations
// (selector.go's Run doc comment: "a Selector implementation is responsible
// for bounding how long that wait can last").
const defaultPollInterval = 200 * time.Millisecond

// Selector is a reactor.Selector over unix.Select.
type Selector struct {
	pollInterval time.Duration

	reading []reactor.SocketID
	writing []reactor.SocketID

	readyRead  map[reactor.SocketID]bool
	readyWrite map[reactor.SocketID]bool
}

// Option configures a Selector.
type Option func(*Selector)

// WithPollInterval overrides the timeout passed to every unix.Select call
// (default 200ms).
func WithPollInterval(d time.Duration) Option {
	return func(s *Selector) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// NewSelector constructs a Selector.
func NewSelector(opts ...Option) *Selector {
	s := &Selector{pollInterval: defaultPollInterval}
	for _, fn := range opts {
		fn(s)
	}
	return s
}

// BeginSelect implements reactor.Selector.
func (s *Selector) BeginSelect() {
	s.reading = s.reading[:0]
	s.writing = s.writing[:0]
}

// PreSelectParams implements reactor.Selector.
func (s *Selector) PreSelectParams() reactor.PreSelect {
	return preView{s}
}

// Select implements reactor.Selector.
func (s *Selector) Select() error {
	var readSet, writeSet unix.FdSet
	nfds := 0

	for _, id := range s.reading {
		setFD(&readSet, int(id))
		if int(id)+1 > nfds {
			nfds = int(id) + 1
		}
	}
	for _, id := range s.writing {
		setFD(&writeSet, int(id))
		if int(id)+1 > nfds {
			nfds = int(id) + 1
		}
	}

	timeout := unix.NsecToTimeval(s.pollInterval.Nanoseconds())

	if nfds > 0 {
		_, err := unix.Select(nfds, &readSet, &writeSet, nil, &timeout)
		if err != nil && err != unix.EINTR {
			return fmt.Errorf("sysselect: select failed: %w", err)
		}
	} else {
		time.Sleep(s.pollInterval)
	}

	s.readyRead = make(map[reactor.SocketID]bool, len(s.reading))
	for _, id := range s.reading {
		if isSet(&readSet, int(id)) {
			s.readyRead[id] = true
		}
	}

	s.readyWrite = make(map[reactor.SocketID]bool, len(s.writing))
	for _, id := range s.writing {
		if isSet(&writeSet, int(id)) {
			s.readyWrite[id] = true
		}
	}

	return nil
}

// PostSelectParams implements reactor.Selector.
func (s *Selector) PostSelectParams() reactor.PostSelect {
	return postView{s}
}

// EndSelect implements reactor.Selector.
func (s *Selector) EndSelect() {}

func setFD(set *unix.FdSet, fd int) {
	set.Bits[fd/fdBits] |= 1 << (uint(fd) % fdBits)
}

func isSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/fdBits]&(1<<(uint(fd)%fdBits)) != 0
}

type preView struct{ sel *Selector }

func (v preView) SetRead(id reactor.SocketID)  { v.sel.reading = append(v.sel.reading, id) }
func (v preView) SetWrite(id reactor.SocketID) { v.sel.writing = append(v.sel.writing, id) }

type postView struct{ sel *Selector }

func (v postView) ReadIsSet(id reactor.SocketID) bool  { return v.sel.readyRead[id] }
func (v postView) WriteIsSet(id reactor.SocketID) bool { return v.sel.readyWrite[id] }
