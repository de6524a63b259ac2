package fakesock

import "github.com/readysock/reactor"

// Selector is the fake counterpart of reactor.Selector: instead of waiting
// on a real readiness primitive, it resolves readiness immediately by
// inspecting Provider's in-memory socket state.
type Selector struct {
	provider *Provider
	reading  map[reactor.SocketID]bool
	writing  map[reactor.SocketID]bool
}

// NewSelector constructs a Selector over provider.
func NewSelector(provider *Provider) *Selector {
	return &Selector{provider: provider}
}

// BeginSelect implements reactor.Selector.
func (sel *Selector) BeginSelect() {
	sel.reading = make(map[reactor.SocketID]bool)
	sel.writing = make(map[reactor.SocketID]bool)
}

// PreSelectParams implements reactor.Selector.
func (sel *Selector) PreSelectParams() reactor.PreSelect {
	return preView{sel}
}

// Select implements reactor.Selector. It never blocks: readiness for a fake
// socket is always immediately knowable, so "select" degenerates to pruning
// interests that turned out not to be ready this round.
func (sel *Selector) Select() error {
	for id := range sel.reading {
		if !sel.checkRead(id) {
			delete(sel.reading, id)
		}
	}
	for id := range sel.writing {
		if !sel.checkWrite(id) {
			delete(sel.writing, id)
		}
	}
	return nil
}

// PostSelectParams implements reactor.Selector.
func (sel *Selector) PostSelectParams() reactor.PostSelect {
	return postView{sel}
}

// EndSelect implements reactor.Selector.
func (sel *Selector) EndSelect() {}

// checkRead decides whether a read on id would make progress right now.
func (sel *Selector) checkRead(id reactor.SocketID) bool {
	s := sel.provider.socket(id)

	switch {
	case s.isConnecting():
		panic("fakesock: socket registered read-interested while connecting")
	case s.listening:
		_, ok := sel.provider.findPendingAccept(id)
		return ok
	case s.remote != nil:
		remote := sel.provider.socket(*s.remote)
		if remote.closed {
			return true
		}
		return !remote.out.isEmpty()
	default:
		panic("fakesock: checkRead on a socket with no peer or listener")
	}
}

// checkWrite decides whether a write on id would make progress right now.
// As a side effect it resolves a pending Connect (accepted vs refused) the
// first time id's writability is checked.
func (sel *Selector) checkWrite(id reactor.SocketID) bool {
	s := sel.provider.socket(id)

	switch {
	case s.isConnecting():
		if listenID, ok := sel.provider.findListeningOnPort(*s.connectPort); ok {
			s.connectPort = nil
			peer := listenID
			s.remote = &peer
		} else {
			s.refused = true
			s.connectPort = nil
		}
		return true
	case s.remote != nil:
		remote := sel.provider.socket(*s.remote)
		if !s.out.isFull() {
			return true
		}
		return remote.closed
	case s.refused:
		return true
	default:
		panic("fakesock: checkWrite on a socket with no peer, listener or refusal")
	}
}

type preView struct{ sel *Selector }

func (v preView) SetRead(id reactor.SocketID)  { v.sel.reading[id] = true }
func (v preView) SetWrite(id reactor.SocketID) { v.sel.writing[id] = true }

type postView struct{ sel *Selector }

func (v postView) ReadIsSet(id reactor.SocketID) bool  { return v.sel.reading[id] }
func (v postView) WriteIsSet(id reactor.SocketID) bool { return v.sel.writing[id] }
