package reactor

import "github.com/go-logr/logr"

// defaultMinChunkSize is the default minimum amount of spare receive-buffer capacity
// MessageReceiver ensures before every recv attempt.
const defaultMinChunkSize = 1024

// defaultBacklog is the listen backlog MessageServer uses unless
// overridden.
const defaultBacklog = 1

// receiverOptions configures a MessageReceiver's buffer growth policy.
type receiverOptions struct {
	minChunkSize  int
	maxBufferSize int // 0 means unbounded
}

func defaultReceiverOptions() receiverOptions {
	return receiverOptions{minChunkSize: defaultMinChunkSize}
}

// ReceiverOption configures a MessageReceiver.
type ReceiverOption func(*receiverOptions)

// WithMinChunkSize overrides the minimum spare capacity ensured before each
// receive attempt. The default is 1024.
func WithMinChunkSize(n int) ReceiverOption {
	return func(o *receiverOptions) {
		if n > 0 {
			o.minChunkSize = n
		}
	}
}

// WithMaxBufferSize caps how large a MessageReceiver's buffer may grow.
// Zero, the default, means unbounded growth. When set and a receive-step
// would need to grow past the cap to make room for the next chunk, the
// receiver reports unhealthy, the same outcome as a provider error.
func WithMaxBufferSize(n int) ReceiverOption {
	return func(o *receiverOptions) { o.maxBufferSize = n }
}

// serverOptions configures a MessageServer.
type serverOptions struct {
	backlog  int
	logger   logr.Logger
	receiver []ReceiverOption
}

func defaultServerOptions() serverOptions {
	return serverOptions{backlog: defaultBacklog, logger: logr.Discard()}
}

// ServerOption configures a MessageServer.
type ServerOption func(*serverOptions)

// WithBacklog overrides the listen backlog (default 1).
func WithBacklog(n int) ServerOption {
	return func(o *serverOptions) {
		if n > 0 {
			o.backlog = n
		}
	}
}

// WithServerLogger attaches a structured logger for bind failures, accepts,
// and disconnects. The default is logr.Discard().
func WithServerLogger(l logr.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = l }
}

// WithServerReceiverOptions forwards ReceiverOptions to every per-client
// MessageReceiver the server creates.
func WithServerReceiverOptions(opts ...ReceiverOption) ServerOption {
	return func(o *serverOptions) { o.receiver = append(o.receiver, opts...) }
}

// clientOptions configures a MessageClient.
type clientOptions struct {
	logger   logr.Logger
	receiver []ReceiverOption
}

func defaultClientOptions() clientOptions {
	return clientOptions{logger: logr.Discard()}
}

// ClientOption configures a MessageClient.
type ClientOption func(*clientOptions)

// WithClientLogger attaches a structured logger for connect refusals and
// disconnects. The default is logr.Discard().
func WithClientLogger(l logr.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = l }
}

// WithClientReceiverOptions forwards ReceiverOptions to the client's
// MessageReceiver.
func WithClientReceiverOptions(opts ...ReceiverOption) ClientOption {
	return func(o *clientOptions) { o.receiver = append(o.receiver, opts...) }
}
