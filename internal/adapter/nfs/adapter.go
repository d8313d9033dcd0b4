package nfs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/marmos91/nfswire/internal/logger"
	"github.com/marmos91/nfswire/internal/protocol/rpc"
	"github.com/marmos91/nfswire/pkg/metrics"
	"github.com/marmos91/nfswire/pkg/quiesce"
)

// Timeouts bundles the connection deadlines.
type Timeouts struct {
	// Idle is the read deadline between requests; zero disables it.
	Idle time.Duration

	// Write is the per-reply write deadline; zero disables it.
	Write time.Duration
}

// Config holds the adapter's static settings.
type Config struct {
	// ListenAddr is the TCP address to bind, e.g. ":2049".
	ListenAddr string

	// MaxFragmentSize caps incoming RPC records; zero selects the default.
	MaxFragmentSize uint32

	// MaxRequestsPerConnection bounds concurrent in-flight requests per
	// connection; zero selects 16.
	MaxRequestsPerConnection int

	Timeouts Timeouts

	// WrapConn, when set, wraps every accepted connection before serving,
	// e.g. to splice in pcap capture.
	WrapConn func(net.Conn) net.Conn
}

// Adapter serves the NFS and MOUNT programs on one TCP listener, tying
// together the dispatch table, a backend, the quiescing controller, and
// optional metrics.
type Adapter struct {
	config     Config
	backend    Backend
	metrics    metrics.NFSMetrics
	controller *quiesce.Controller
	listener   net.Listener
}

// New creates an adapter. metrics may be nil.
func New(config Config, backend Backend, m metrics.NFSMetrics) *Adapter {
	if config.MaxFragmentSize == 0 {
		config.MaxFragmentSize = rpc.DefaultMaxFragmentSize
	}
	if config.MaxRequestsPerConnection <= 0 {
		config.MaxRequestsPerConnection = 16
	}
	return &Adapter{
		config:     config,
		backend:    backend,
		metrics:    m,
		controller: quiesce.NewController("nfs:" + config.ListenAddr),
	}
}

// Addr returns the bound listen address, nil before Serve.
func (s *Adapter) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Listen binds the TCP listener without accepting yet. Serve calls it
// implicitly; tests call it directly to learn the bound port.
func (s *Adapter) Listen() error {
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddr, err)
	}
	s.listener = listener
	s.controller.SetAcceptor(listener)
	logger.Info("NFS adapter listening", "address", listener.Addr().String())
	return nil
}

// Serve accepts connections until the listener is closed by Shutdown or
// the context is cancelled.
func (s *Adapter) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				// Shutdown closed the acceptor
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		if s.config.WrapConn != nil {
			conn = s.config.WrapConn(conn)
		}

		c := NewConnection(s, conn)
		handle, err := s.controller.AddChild(c)
		if err != nil {
			// Raced with completed shutdown; the controller closed it
			logger.Debug("Rejected connection during shutdown", "address", conn.RemoteAddr().String())
			continue
		}

		go c.Serve(ctx, handle)
	}
}

// Shutdown quiesces the adapter: the listener closes, children drain, and
// the call returns when the last connection is gone or ctx expires.
func (s *Adapter) Shutdown(ctx context.Context) error {
	done := s.controller.InitiateShutdown()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
