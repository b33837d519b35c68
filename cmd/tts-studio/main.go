// Command tts-studio runs the speech generation studio: the HTTP API, the
// job queue with its embedded broker, and the generation history store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"tts-studio/internal/config"
	"tts-studio/internal/engine"
	"tts-studio/internal/history"
	"tts-studio/internal/natsserver"
	"tts-studio/internal/queue"
	"tts-studio/internal/server"
	"tts-studio/internal/system"
	"tts-studio/internal/tunnel"
)

const (
	flagConfigDescription  = "path to a TOML configuration file"
	flagPortDescription    = "port to run the server on"
	flagHostDescription    = "host address to bind to"
	flagNoShareDescription = "disable public URL sharing"
	flagCPUDescription     = "force CPU inference on the engine"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
	tunnelURLTimeout  = 30 * time.Second
)

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tts-studio exited with error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	configPath := flag.String("config", "", flagConfigDescription)
	portFlag := flag.Int("port", 0, flagPortDescription)
	hostFlag := flag.String("host", "", flagHostDescription)
	noShare := flag.Bool("no-share", false, flagNoShareDescription)
	cpuOnly := flag.Bool("cpu", false, flagCPUDescription)
	flag.Parse()

	bootstrapLog, err := logger.New(os.TempDir(), "tts-studio-bootstrap.log")
	if err != nil {
		return fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	err = applyFlags(cfg, *portFlag, *hostFlag, *noShare, *cpuOnly)
	if err != nil {
		bootstrapLog.Error("Invalid flag overrides: %v", err)

		return err
	}

	err = cfg.EnsureDirectories()
	if err != nil {
		bootstrapLog.Error("Failed to create data directories: %v", err)

		return fmt.Errorf("failed to create data directories: %w", err)
	}

	log, err := logger.New(cfg.Paths.LogsDir, "tts-studio.log")
	if err != nil {
		bootstrapLog.Error("Failed to create logger: %v", err)

		return fmt.Errorf("failed to create logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	return serve(cfg, log)
}

// applyFlags layers the CLI overrides on top of the loaded configuration
// and re-validates the result.
func applyFlags(cfg *config.Config, port int, host string, noShare, cpuOnly bool) error {
	if port != 0 {
		cfg.Server.Port = port
	}

	if host != "" {
		cfg.Server.Host = host
	}

	if noShare {
		cfg.Server.Share = false
	}

	if cpuOnly {
		cfg.Engine.Device = config.DeviceCPU

		// Hide GPUs from the engine process family as well.
		err := os.Setenv("CUDA_VISIBLE_DEVICES", "")
		if err != nil {
			return fmt.Errorf("failed to clear CUDA_VISIBLE_DEVICES: %w", err)
		}
	}

	err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid configuration after flag overrides: %w", err)
	}

	return nil
}

func serve(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedded, err := natsserver.Start(cfg.Queue, log)
	if err != nil {
		return err
	}

	defer embedded.Shutdown()

	natsURL := cfg.Queue.URL
	if embedded != nil {
		natsURL = embedded.ClientURL()
	}

	conn, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
	}

	defer conn.Close()

	store, err := history.Open(cfg.Paths.HistoryDir, cfg.Paths.DatabaseFile, log)
	if err != nil {
		return err
	}

	engineClient := engine.NewClient(
		cfg.Engine.ServiceURL(),
		time.Duration(cfg.Engine.TimeoutSeconds)*time.Second,
		cfg.Engine.Device,
	)

	jobQueue := queue.New(conn, engineClient, store, log, queue.Options{
		JobsSubject:   cfg.Queue.JobsSubject,
		EventsSubject: cfg.Queue.EventsSubject,
		Workers:       cfg.Queue.Workers,
		MaxPending:    cfg.Queue.MaxPending,
		JobTimeout:    time.Duration(cfg.Engine.TimeoutSeconds) * time.Second,
	})

	reporter := system.NewReporter(engineClient, store, cfg.Engine.Device)
	srv := server.New(cfg, log, jobQueue, store, engineClient, reporter, conn)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return jobQueue.Run(groupCtx)
	})

	group.Go(func() error {
		log.System("Studio listening on http://%s", addr)

		serveErr := httpServer.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", serveErr)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		shutdownErr := httpServer.Shutdown(shutdownCtx)
		if shutdownErr != nil {
			return fmt.Errorf("http shutdown failed: %w", shutdownErr)
		}

		return nil
	})

	startTunnel(ctx, cfg, log)

	return group.Wait()
}

// startTunnel brings up the public URL tunnel when sharing is enabled. A
// missing or failing tunnel never prevents local serving.
func startTunnel(ctx context.Context, cfg *config.Config, log *logger.Logger) {
	if !cfg.Server.Share {
		return
	}

	tun, err := tunnel.Start(ctx, cfg.Server.TunnelCommand, log)
	if errors.Is(err, tunnel.ErrNoCommand) {
		log.Warn("Sharing requested but no tunnel command configured; serving locally only")

		return
	}

	if err != nil {
		log.Warn("Failed to start tunnel: %v", err)

		return
	}

	go func() {
		<-ctx.Done()
		tun.Stop()
	}()

	_, err = tun.PublicURL(tunnelURLTimeout)
	if err != nil {
		log.Warn("Tunnel started but no public URL appeared: %v", err)
	}
}
