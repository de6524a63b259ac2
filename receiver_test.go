package reactor

import (
	"bytes"
	"errors"
	"testing"
)

// scriptedRecvProvider is a scripted fake standing in for a real
// SocketProvider: each call to Recv consumes the next scripted chunk.
type scriptedRecvProvider struct {
	chunks [][]byte
	errs   []error
	step   int
}

func (p *scriptedRecvProvider) Recv(id SocketID, buf []byte) (int, error) {
	if p.step >= len(p.chunks) {
		return 0, errors.New("scriptedRecvProvider: out of steps")
	}
	chunk := p.chunks[p.step]
	err := p.errs[p.step]
	p.step++

	n := copy(buf, chunk)
	return n, err
}

func (p *scriptedRecvProvider) Create() (SocketID, error) { panic("unused") }
func (p *scriptedRecvProvider) SetNonblocking(SocketID, bool) error           { panic("unused") }
func (p *scriptedRecvProvider) Connect(SocketID, Address) error               { panic("unused") }
func (p *scriptedRecvProvider) ConnectionWasRefused(SocketID) (bool, error) { panic("unused") }
func (p *scriptedRecvProvider) Bind(SocketID, Address) error                  { panic("unused") }
func (p *scriptedRecvProvider) Listen(SocketID, int) error                    { panic("unused") }
func (p *scriptedRecvProvider) Accept(SocketID) (SocketID, error) { panic("unused") }
func (p *scriptedRecvProvider) Send(SocketID, []byte) (int, error) { panic("unused") }
func (p *scriptedRecvProvider) Close(SocketID) error                          { panic("unused") }

func TestMessageReceiver_SingleMessageInOneRead(t *testing.T) {
	p := &scriptedRecvProvider{
		chunks: [][]byte{[]byte("hello\x00")},
		errs:   []error{nil},
	}

	r := NewMessageReceiver()
	var got []byte
	healthy := r.ReceiveStep(p, 0, func(message []byte) { got = append([]byte(nil), message...) })

	if !healthy {
		t.Fatal("expected healthy receive-step")
	}
	if !bytes.Equal(got, []byte("hello\x00")) {
		t.Fatalf("got %q, want %q", got, "hello\x00")
	}
}

func TestMessageReceiver_FragmentationInvariance(t *testing.T) {
	// "hello\0" split across three arbitrary reads.
	p := &scriptedRecvProvider{
		chunks: [][]byte{[]byte("he"), []byte("ll"), []byte("o\x00")},
		errs:   []error{nil, nil, nil},
	}

	r := NewMessageReceiver()
	var got []byte
	for i := 0; i < 3; i++ {
		if !r.ReceiveStep(p, 0, func(message []byte) { got = append([]byte(nil), message...) }) {
			t.Fatalf("receive-step %d reported unhealthy", i)
		}
	}

	if !bytes.Equal(got, []byte("hello\x00")) {
		t.Fatalf("got %q, want %q", got, "hello\x00")
	}
}

func TestMessageReceiver_Coalescing(t *testing.T) {
	// One read spans the terminator of message 1 and the prefix of message 2.
	p := &scriptedRecvProvider{
		chunks: [][]byte{[]byte("m1\x00m2"), []byte("\x00")},
		errs:   []error{nil, nil},
	}

	r := NewMessageReceiver()
	var messages [][]byte
	handler := func(message []byte) { messages = append(messages, append([]byte(nil), message...)) }

	if !r.ReceiveStep(p, 0, handler) {
		t.Fatal("step 0: expected healthy")
	}
	if len(messages) != 1 || string(messages[0]) != "m1\x00" {
		t.Fatalf("after step 0, messages = %q", messages)
	}

	if !r.ReceiveStep(p, 0, handler) {
		t.Fatal("step 1: expected healthy")
	}
	if len(messages) != 2 || string(messages[1]) != "m2\x00" {
		t.Fatalf("after step 1, messages = %q", messages)
	}
}

func TestMessageReceiver_AtMostOneMessagePerStep(t *testing.T) {
	// Two terminators in a single chunk: only the first message is delivered
	// this step; the rest stays buffered for the next one.
	p := &scriptedRecvProvider{
		chunks: [][]byte{[]byte("a\x00b\x00")},
		errs:   []error{nil},
	}

	r := NewMessageReceiver()
	var messages [][]byte
	handler := func(message []byte) { messages = append(messages, append([]byte(nil), message...)) }

	if !r.ReceiveStep(p, 0, handler) {
		t.Fatal("expected healthy")
	}
	if len(messages) != 1 || string(messages[0]) != "a\x00" {
		t.Fatalf("messages = %q, want exactly one message \"a\\x00\"", messages)
	}
}

func TestMessageReceiver_NonPositiveRecvIsUnhealthy(t *testing.T) {
	p := &scriptedRecvProvider{
		chunks: [][]byte{{}},
		errs:   []error{nil},
	}

	r := NewMessageReceiver()
	if r.ReceiveStep(p, 0, func([]byte) { t.Fatal("handler should not be called") }) {
		t.Fatal("expected unhealthy on n == 0")
	}
}

func TestMessageReceiver_ErrorIsUnhealthy(t *testing.T) {
	p := &scriptedRecvProvider{
		chunks: [][]byte{[]byte("partial")},
		errs:   []error{errors.New("boom")},
	}

	r := NewMessageReceiver()
	if r.ReceiveStep(p, 0, func([]byte) { t.Fatal("handler should not be called") }) {
		t.Fatal("expected unhealthy on error")
	}
}

func TestMessageReceiver_GrowsBufferAndNeverShrinks(t *testing.T) {
	big := bytes.Repeat([]byte("x"), 2000)
	big = append(big, 0)

	// A 1024-byte minimum chunk only ever grows the buffer to
	// nBytesRead+1024 per ensureCapacity call, so delivering a 2001-byte
	// message takes several ReceiveStep rounds; script enough of them.
	p := &scriptedRecvProvider{
		chunks: [][]byte{big[:1024], big[1024:2001]},
		errs:   []error{nil, nil},
	}

	r := NewMessageReceiver(WithMinChunkSize(1024))
	var got []byte
	for i := 0; got == nil; i++ {
		if i >= len(p.chunks) {
			t.Fatal("message never delivered")
		}
		if !r.ReceiveStep(p, 0, func(message []byte) { got = append([]byte(nil), message...) }) {
			t.Fatal("expected healthy")
		}
	}
	if !bytes.Equal(got, big) {
		t.Fatalf("got len %d, want %d", len(got), len(big))
	}
	if len(r.buf) < 2000 {
		t.Fatalf("buffer did not grow to fit the message: len(buf)=%d", len(r.buf))
	}
}

func TestMessageReceiver_MaxBufferSizeExceeded(t *testing.T) {
	p := &scriptedRecvProvider{
		chunks: [][]byte{[]byte("no-terminator-yet")},
		errs:   []error{nil},
	}

	r := NewMessageReceiver(WithMaxBufferSize(8))
	if r.ReceiveStep(p, 0, func([]byte) {}) {
		t.Fatal("expected unhealthy once growth would exceed the configured cap")
	}
}
