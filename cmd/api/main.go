package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/marcelsud/webhook-relay/config"
	"github.com/marcelsud/webhook-relay/event"
	"github.com/marcelsud/webhook-relay/forwarding"
	"github.com/marcelsud/webhook-relay/forwarding/destination"
	"github.com/marcelsud/webhook-relay/forwarding/filter"
	"github.com/marcelsud/webhook-relay/internal/http/chi"
	"github.com/marcelsud/webhook-relay/internal/logging"
	"github.com/marcelsud/webhook-relay/metrics"
	"github.com/marcelsud/webhook-relay/rules"
	"github.com/marcelsud/webhook-relay/sandbox"
	"github.com/marcelsud/webhook-relay/store"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const TIMEOUT = 30 * time.Second

/* api receives webhooks on /e/{endpoint_id}, stores them for the relays
 * and runs the forwarding rules of the endpoint
 * Started with the sandbox-exec argument it is the sandbox child instead
 */
func main() {
	if sandbox.IsChild(os.Args) {
		if err := sandbox.ServeChild(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}
	logger := logging.New("webhook-relay-api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	backend, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.StoreDriver, err)
	}
	defer backend.Close()
	logger.Info().Str("driver", backend.Driver).Msg("store connected")

	if err := seedRules(ctx, cfg.RulesFile, backend.Forwarding, logger); err != nil {
		return err
	}

	exporter, err := metrics.NewOTelExporter(backend.Collector)
	if err != nil {
		return fmt.Errorf("creating metrics exporter: %w", err)
	}
	defer exporter.Shutdown(context.Background())

	runner, err := newRunner(cfg.SandboxMode)
	if err != nil {
		return err
	}
	sb := sandbox.New(runner, sandbox.Limits{
		Timeout:     cfg.GetSandboxTimeout(),
		MemoryBytes: cfg.GetSandboxMemoryBytes(),
	})

	forwarder := forwarding.NewService(forwarding.ServiceConfig{
		Repo:        backend.Forwarding,
		Filter:      filter.NewEvaluator(sb, logger),
		Transformer: sb,
		Dispatcher:  destination.NewRegistry(&http.Client{Timeout: cfg.GetDispatchTimeout()}),
		Recorder:    exporter,
		Logger:      logger,
	})

	tasks := &sync.WaitGroup{}
	r := chi.Handlers(ctx, chi.Deps{
		Events:            event.NewService(backend.Events, cfg.EventMaxRetries),
		Executions:        backend.Forwarding,
		Forwarding:        forwarder,
		Connections:       backend.Connections,
		Validator:         sb,
		Collector:         backend.Collector,
		Metrics:           exporter.Handler(),
		ForwardingTimeout: cfg.GetForwardingTimeout(),
		Tasks:             tasks,
		Logger:            logger,
	})
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return shutdown(gctx, srv, tasks, logger)
	})
	return g.Wait()
}

func shutdown(ctx context.Context, server *http.Server, tasks *sync.WaitGroup, logger zerolog.Logger) error {
	<-ctx.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	logger.Info().Msg("shutting down server")
	if err := server.Shutdown(ctxTimeout); err != nil {
		return fmt.Errorf("forcing closing the server: %w", err)
	}

	done := make(chan struct{})
	go func() {
		tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctxTimeout.Done():
		return fmt.Errorf("forwarding still running after %s", TIMEOUT)
	}
}

func newRunner(mode string) (sandbox.Runner, error) {
	switch mode {
	case "inprocess":
		return sandbox.InProcessRunner{}, nil
	case "process", "":
		runner, err := sandbox.NewProcessRunner()
		if err != nil {
			return nil, fmt.Errorf("creating sandbox runner: %w", err)
		}
		return runner, nil
	}
	return nil, fmt.Errorf("unknown sandbox mode: %q", mode)
}

// seedRules saves the rules file into the store; a missing file means no rules
func seedRules(ctx context.Context, path string, repo forwarding.RuleWriter, logger zerolog.Logger) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Warn().Str("file", path).Msg("rules file not found, forwarding rules come from the store only")
		return nil
	}

	loader := rules.NewLoader()
	if err := loader.Load(path); err != nil {
		return err
	}
	if err := loader.Seed(ctx, repo); err != nil {
		return err
	}
	logger.Info().Str("file", path).Int("endpoints", len(loader.Endpoints())).Msg("rules loaded")
	return nil
}
