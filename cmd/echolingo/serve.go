package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os/signal"
	"syscall"

	"github.com/jthomaschappell/echolingo-resurgence/internal/approval"
	"github.com/jthomaschappell/echolingo-resurgence/internal/config"
	"github.com/jthomaschappell/echolingo-resurgence/internal/http"
	"github.com/jthomaschappell/echolingo-resurgence/internal/llm"
	"github.com/jthomaschappell/echolingo-resurgence/internal/notify"
	"github.com/jthomaschappell/echolingo-resurgence/internal/relay"
	"github.com/jthomaschappell/echolingo-resurgence/internal/supplyagent"
	"github.com/jthomaschappell/echolingo-resurgence/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay HTTP server",
	Long: `Run the HTTP server: the worker message API, the Twilio webhook,
worker event streams, the supply request listing, /health and /metrics.

Examples:
  # Local run with an embedded event bus and in-memory store
  ECHOLINGO_NATS_EMBEDDED=true echolingo serve

  # Production
  ECHOLINGO_STORE_DRIVER=postgres DATABASE_URL=postgres://... echolingo serve --config /etc/echolingo.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

// runServe wires every dependency and blocks until ctx is cancelled.
func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tel := telemetry.New(ctx, cfg.Observability, version)
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()
	if degraded, terr := tel.Degraded(); degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Error(terr))
	}

	logger.Info(ctx, "starting echolingo",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("nats_embedded", cfg.NATS.Embedded),
		zap.Bool("delivery", cfg.DeliveryEnabled()))

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	b, err := connectBus(cfg.NATS, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	deduper, closeDeduper, err := newDeduper(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeDeduper()

	fast, analysis, err := llm.FromConfig(cfg.LLM)
	if err != nil {
		return err
	}
	translator := llm.NewTranslator(fast)
	publisher := notify.NewNATSPublisher(b.conn)

	agent := supplyagent.New(fast, st, st,
		supplyagent.WithLogger(logger.Named("supplyagent")),
		supplyagent.WithTracer(tel.Tracer("echolingo/supplyagent")))
	machine := approval.NewMachine(st, translator, publisher,
		approval.WithApprover(cfg.Pipeline.Approver),
		approval.WithLogger(logger.Named("approval")))

	r := relay.New(relay.Deps{
		Store:      st,
		Translator: translator,
		Analyzer:   llm.NewAnalyzer(analysis),
		Pipeline:   agent,
		Commands:   machine,
		Sender:     newSender(ctx, cfg, logger),
		Publisher:  publisher,
		Deduper:    deduper,
	},
		relay.WithSupervisor(cfg.Twilio.SupervisorTo),
		relay.WithPipelineTimeout(cfg.Pipeline.Timeout.Duration()),
		relay.WithLogger(logger.Named("relay")),
		relay.WithTracer(tel.Tracer("echolingo/relay")))

	srv, err := http.NewServer(http.Deps{
		Relay:     r,
		Requests:  st,
		Events:    notify.NewSSE(b.conn, 0),
		Validator: newValidator(cfg),
		Metrics:   http.NewHTTPMetrics(logger),
	}, logger, serverConfig(cfg))
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "http shutdown", zap.Error(err))
		return err
	}
	logger.Info(shutdownCtx, "server shutdown complete")
	return nil
}

func serverConfig(cfg *config.Config) *http.Config {
	return &http.Config{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		PublicURL:        cfg.Server.PublicURL,
		WebhookRateLimit: cfg.Server.WebhookRateLimit,
		WebhookBurst:     cfg.Server.WebhookBurst,
	}
}
