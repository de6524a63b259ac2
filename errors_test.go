package reactor_test

import (
	"errors"
	"testing"

	"github.com/readysock/reactor"
)

func TestErrBindFailed_WrapsUnderlyingError(t *testing.T) {
	provider := fakeBindFailer{err: errors.New("address in use")}

	server := reactor.NewMessageServer(provider, reactor.ServerEvents{})
	err := server.StartListening(4145)

	if !errors.Is(err, reactor.ErrBindFailed) {
		t.Fatalf("expected errors.Is(err, ErrBindFailed), got %v", err)
	}
	if !errors.Is(err, provider.err) {
		t.Fatalf("expected errors.Is(err, underlying bind error), got %v", err)
	}
}

// fakeBindFailer implements reactor.SocketProvider just enough to make
// Bind fail, exercising the wrapping path independent of a full provider.
type fakeBindFailer struct{ err error }

func (f fakeBindFailer) Create() (reactor.SocketID, error) { return 0, nil }
func (f fakeBindFailer) SetNonblocking(reactor.SocketID, bool) error { return nil }
func (f fakeBindFailer) Connect(reactor.SocketID, reactor.Address) error { panic("unused") }
func (f fakeBindFailer) ConnectionWasRefused(reactor.SocketID) (bool, error) { panic("unused") }
func (f fakeBindFailer) Bind(reactor.SocketID, reactor.Address) error { return f.err }
func (f fakeBindFailer) Listen(reactor.SocketID, int) error { panic("unused") }
func (f fakeBindFailer) Accept(reactor.SocketID) (reactor.SocketID, error) { panic("unused") }
func (f fakeBindFailer) Send(reactor.SocketID, []byte) (int, error) { panic("unused") }
func (f fakeBindFailer) Recv(reactor.SocketID, []byte) (int, error) { panic("unused") }
func (f fakeBindFailer) Close(reactor.SocketID) error { return nil }

func TestMessageServer_StopListeningWhileNotListening(t *testing.T) {
	server := reactor.NewMessageServer(fakeBindFailer{}, reactor.ServerEvents{})
	if err := server.StopListening(); !errors.Is(err, reactor.ErrNotListening) {
		t.Fatalf("expected ErrNotListening, got %v", err)
	}
}

func TestMessageClient_DisconnectWhileIdle(t *testing.T) {
	client := reactor.NewMessageClient(fakeBindFailer{}, reactor.ClientEvents{})
	if err := client.Disconnect(); !errors.Is(err, reactor.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestMessageServer_UnknownClientID(t *testing.T) {
	server := reactor.NewMessageServer(fakeBindFailer{}, reactor.ServerEvents{})
	if err := server.QueueMessageToClient(7, []byte("x\x00")); !errors.Is(err, reactor.ErrUnknownClient) {
		t.Fatalf("expected ErrUnknownClient, got %v", err)
	}
}
