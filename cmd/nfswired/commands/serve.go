package commands

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	adapter "github.com/marmos91/nfswire/internal/adapter/nfs"
	"github.com/marmos91/nfswire/internal/logger"
	"github.com/marmos91/nfswire/pkg/config"
	"github.com/marmos91/nfswire/pkg/memfs"
	"github.com/marmos91/nfswire/pkg/metrics"
	promadapter "github.com/marmos91/nfswire/pkg/metrics/prometheus"
	"github.com/marmos91/nfswire/pkg/pcap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the NFS and MOUNT programs",
	Long: `Serve the NFSv3 and MOUNT programs on the configured TCP address,
backed by the built-in in-memory filesystem.

Examples:
  # Serve with the default config location
  nfswired serve

  # Serve with a custom config
  nfswired serve --config /etc/nfswire/config.yaml

  # Override a setting through the environment
  NFSWIRE_LOGGING_LEVEL=DEBUG nfswired serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return err
	}

	logger.Info("Starting nfswired", "version", Version, "export", cfg.Export.Path)

	// Metrics endpoint
	var nfsMetrics metrics.NFSMetrics
	if cfg.Metrics.Enabled {
		registry := metrics.InitRegistry()
		nfsMetrics = promadapter.NewNFSMetrics()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			logger.Info("Metrics endpoint listening", "address", cfg.Metrics.ListenAddr)
			if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil {
				logger.Error("Metrics endpoint failed", "error", err)
			}
		}()
	}

	// The served tree: volatile, seeded with a README
	fs := memfs.New(cfg.Export.Path)
	if err := fs.WriteFile("/README.txt", []byte(serveReadme), 0644); err != nil {
		return err
	}

	srv := adapter.New(adapter.Config{
		ListenAddr:               cfg.NFS.ListenAddr,
		MaxFragmentSize:          uint32(cfg.NFS.MaxFragmentSize.Uint64()),
		MaxRequestsPerConnection: cfg.NFS.MaxRequestsPerConnection,
		Timeouts: adapter.Timeouts{
			Idle:  cfg.NFS.IdleTimeout,
			Write: cfg.NFS.WriteTimeout,
		},
		WrapConn: captureWrapper(cfg),
	}, fs, nfsMetrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	// Wait for a termination signal or a listener failure
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		logger.Info("Received signal, shutting down", "signal", sig.String())
	case err := <-serveErr:
		if err != nil {
			return err
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown incomplete, forcing exit", "error", err)
	}
	cancel()

	if closeCapture != nil {
		if err := closeCapture(); err != nil {
			logger.Warn("Closing capture file failed", "error", err)
		}
	}

	logger.Info("Shutdown complete")
	return nil
}

const serveReadme = `This tree is served by nfswired's in-memory backend.
Everything here is volatile and read-only over the wire.
`

// closeCapture finalises the pcap sink at exit, set by captureWrapper.
var closeCapture func() error

// captureWrapper builds the connection wrapper that splices pcap capture
// around every accepted connection, or nil when capture is disabled.
func captureWrapper(cfg *config.Config) func(net.Conn) net.Conn {
	if !cfg.Capture.Enabled {
		return nil
	}

	sink, err := pcap.NewFileSink(cfg.Capture.FilePath, func(err error) {
		logger.Error("pcap capture failed, further records dropped", "error", err)
	})
	if err != nil {
		logger.Error("Disabling pcap capture", "error", err)
		return nil
	}
	closeCapture = sink.SyncClose

	mode := pcap.WhenCompleted
	if cfg.Capture.Mode == "when_issued" {
		mode = pcap.WhenIssued
	}

	logger.Info("Capturing traffic", "path", cfg.Capture.FilePath, "mode", cfg.Capture.Mode)

	return func(conn net.Conn) net.Conn {
		captured, err := pcap.NewCapturingConn(conn, sink.Write, mode)
		if err != nil {
			logger.Warn("Capture wrapper failed for connection",
				"address", conn.RemoteAddr().String(), "error", err)
			return conn
		}
		return captured
	}
}
