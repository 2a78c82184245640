package progress

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/vk/cleangrid/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultDialTimeout bounds how long Dial waits for the monitor.
const DefaultDialTimeout = 15 * time.Second

// DialOptions configures the connection to a progress monitor.
type DialOptions struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// SocketEmitter publishes events to a socket.io server.
type SocketEmitter struct {
	mu sync.Mutex
	io *socket.Socket
}

// Dial connects to the monitor and waits for the connection to be
// confirmed.
func Dial(ctx context.Context, opts DialOptions) (*SocketEmitter, error) {
	logger := ctxlog.FromContext(ctx).With("monitor", opts.URL)

	parsed, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse monitor URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("monitor URL %q needs a scheme and a host", opts.URL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	sopts := socket.DefaultOptions()
	sopts.SetPath(parsed.Path)
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification.")
		sopts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sopts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host), sopts)
	io := manager.Socket(opts.Namespace, sopts)

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(args ...any) {
		if len(args) > 0 {
			if err, ok := args[0].(error); ok {
				connected <- err
				return
			}
		}
		connected <- fmt.Errorf("connection refused")
	})
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		logger.Info("Connected to progress monitor.", "sid", io.Id())
		return &SocketEmitter{io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}
}

// Emit implements Emitter.
func (s *SocketEmitter) Emit(event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.io == nil {
		return fmt.Errorf("emit %q: progress monitor disconnected", event)
	}
	s.io.Emit(event, payload)
	return nil
}

// Close disconnects from the monitor.
func (s *SocketEmitter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.io != nil {
		s.io.Disconnect()
		s.io = nil
	}
	return nil
}
