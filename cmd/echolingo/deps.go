package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jthomaschappell/echolingo-resurgence/internal/config"
	"github.com/jthomaschappell/echolingo-resurgence/internal/dedupe"
	"github.com/jthomaschappell/echolingo-resurgence/internal/logging"
	"github.com/jthomaschappell/echolingo-resurgence/internal/messaging"
	"github.com/jthomaschappell/echolingo-resurgence/internal/notify"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store/memory"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store/postgres"
	"github.com/jthomaschappell/echolingo-resurgence/internal/store/sqlite"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
)

// newLogger builds the service logger from the file/env view of logging
// settings.
func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()
	level, err := logging.LevelFromString(cfg.Level)
	if err != nil {
		return nil, err
	}
	lc.Level = level
	lc.Format = cfg.Format
	lc.Output.OTEL = cfg.OTEL
	return logging.NewLogger(lc, global.GetLoggerProvider())
}

// openStore opens the configured store. SQL stores are migrated.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.DSN.Value())
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, cfg.DSN.Value())
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// bus is the NATS connection and, when embedded, the server behind it.
type bus struct {
	conn   *nats.Conn
	server *natsserver.Server
}

func (b *bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
	if b.server != nil {
		b.server.Shutdown()
		b.server.WaitForShutdown()
	}
}

func connectBus(cfg config.NATSConfig, logger *logging.Logger) (*bus, error) {
	b := &bus{}
	url := cfg.URL
	if cfg.Embedded {
		srv, err := notify.StartEmbedded(notify.EmbeddedOptions{})
		if err != nil {
			return nil, err
		}
		b.server = srv
		url = srv.ClientURL()
	}

	nc, err := nats.Connect(url,
		nats.Name("echolingo"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn(context.Background(), "nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	b.conn = nc
	return b, nil
}

// newDeduper returns a Redis deduper when an address is configured, else
// an in-process one. closeFn releases the Redis client.
func newDeduper(ctx context.Context, cfg config.RedisConfig, logger *logging.Logger) (d dedupe.Deduper, closeFn func(), err error) {
	ttl := cfg.DedupeTTL.Duration()
	if cfg.Addr == "" {
		logger.Info(ctx, "webhook dedupe kept in memory")
		return dedupe.NewMemory(ttl), func() {}, nil
	}
	rdb, err := dedupe.Connect(ctx, cfg.Addr, cfg.Password.Value(), cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	return dedupe.NewRedis(rdb, ttl), func() { closeRedis(rdb, logger) }, nil
}

func closeRedis(rdb *redis.Client, logger *logging.Logger) {
	if err := rdb.Close(); err != nil {
		logger.Warn(context.Background(), "close redis", zap.Error(err))
	}
}

// newSender returns the Twilio sender, or an outbox that only records
// messages when credentials are missing.
func newSender(ctx context.Context, cfg *config.Config, logger *logging.Logger) messaging.Sender {
	if !cfg.DeliveryEnabled() {
		logger.Warn(ctx, "twilio delivery not configured; supervisor messages are recorded only")
		return &messaging.Outbox{}
	}
	return messaging.NewTwilioFromCredentials(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken.Value(), cfg.Twilio.From, logger)
}

func newValidator(cfg *config.Config) messaging.Validator {
	if !cfg.Twilio.ValidateSignatures {
		return nil
	}
	return messaging.NewValidator(cfg.Twilio.AuthToken.Value())
}
