package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/zap"

	"github.com/erain9/tradeshield/config"
	memorybackend "github.com/erain9/tradeshield/pkg/backend/memory"
	redisbackend "github.com/erain9/tradeshield/pkg/backend/redis"
	"github.com/erain9/tradeshield/pkg/core"
	"github.com/erain9/tradeshield/pkg/db/queue"
	"github.com/erain9/tradeshield/pkg/feed"
	"github.com/erain9/tradeshield/pkg/logging"
	"github.com/erain9/tradeshield/pkg/messaging/kafka"
	"github.com/erain9/tradeshield/pkg/otel"
	"github.com/erain9/tradeshield/pkg/server"
)

var configFile = flag.String("config", "", "Path to config file (YAML)")

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	logging.Setup(logging.Config{
		Level:  cfg.Server.LogLevel,
		Pretty: cfg.Server.LogFormat == "pretty",
	})

	cleanup, err := otel.Init("tradeshield", 30*time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}
	defer cleanup(context.Background())

	backend, err := setupBackend(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to setup backend")
	}

	sender, err := kafka.NewKafkaMessageSender(cfg.Kafka.BrokerAddr, cfg.Kafka.EventTopic)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create event sender")
	}
	defer sender.Close()

	gateway, err := queue.NewEngineSubmitter()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine submitter")
	}
	defer gateway.Close()

	feedCfg, err := feed.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load feed configuration")
	}
	rates, err := feed.NewRateSource(feedCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create rate source")
	}

	book := core.NewPendingBook(backend, core.WithBondedDenoms(cfg.Server.BondedDenoms...))
	coordinator := core.NewCoordinator(book, gateway)
	handler := server.NewHandler(book, coordinator, rates, sender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runClock(ctx, handler, cfg.Server.ClockInterval)

	log.Info().
		Str("backend", cfg.Backend.Type).
		Dur("clock_interval", cfg.Server.ClockInterval).
		Msg("trade shield started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh

	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")
	cancel()
}

// setupBackend selects the order store from configuration.
func setupBackend(cfg *config.Config) (core.ShieldBackend, error) {
	switch cfg.Backend.Type {
	case "redis":
		redisbackend.SetDefaultRedisOptions(&redisbackend.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		zapLogger, err := zap.NewProduction()
		if err != nil {
			return nil, err
		}
		return redisbackend.NewRedisBackend(redisbackend.GetRedisClient(), cfg.Redis.Prefix, zapLogger), nil
	default:
		return memorybackend.NewMemoryBackend(), nil
	}
}

// runClock invokes the end-of-block trigger scan on a fixed interval.
// Scan failures are logged and retried next tick; an unavailable mark
// rate must not stall the order book.
func runClock(ctx context.Context, handler *server.Handler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var height int64
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			height++
			env := server.Env{Height: height, Time: now.UTC()}
			resp, err := handler.Sudo(ctx, env, &server.SudoMsg{ClockEndBlock: &server.ClockEndBlockMsg{}})
			if err != nil {
				log.Warn().Err(err).Int64("height", height).Msg("clock tick failed")
				continue
			}
			if len(resp.Events) > 0 {
				log.Info().
					Int64("height", height).
					Int("submitted", len(resp.Events)).
					Msg("settlements submitted")
			}
		}
	}
}
