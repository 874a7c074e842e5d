package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tradebot/internal/api"
	"tradebot/internal/bot"
	"tradebot/internal/config"
	"tradebot/internal/metrics"
	"tradebot/internal/util"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to YAML config")
	envPath := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *envPath)
	recent := util.NewRecentLogs(300)
	log := util.NewLoggerWithOptions(util.LogOptions{Level: cfg.App.LogLevel, File: cfg.App.LogFile, Recent: recent})
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config file unavailable, using defaults")
	}

	rt, err := bot.Wire(cfg, log, recent)
	if err != nil {
		log.Fatal().Err(err).Msg("wire bot")
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Error().Err(err).Msg("close runtime")
		}
	}()

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.App.MetricsAddr != "" && cfg.App.MetricsAddr != cfg.App.HTTPAddr {
		srv := metrics.Serve(cfg.App.MetricsAddr)
		defer srv.Close()
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	g, ctx := errgroup.WithContext(ctx)

	if rt.Feed != nil {
		g.Go(func() error {
			if err := rt.Feed.Track(ctx, rt.Prices); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("feed stopped")
			}
			return nil
		})
	}

	if cfg.App.HTTPAddr != "" {
		srv := api.NewServer(rt.Service, log).HTTPServer(cfg.App.HTTPAddr)
		g.Go(func() error {
			log.Info().Str("addr", cfg.App.HTTPAddr).Msg("api up")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return runLoop(ctx, rt.Service, cfg.Interval(), log)
	})

	log.Info().Str("mode", cfg.Bot.Mode).Str("symbol", cfg.Exchange.Symbol).Dur("interval", cfg.Interval()).Msg("tradebot started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("tradebot stopped with error")
		return
	}
	log.Info().Msg("shutting down")
}

func loadConfig(path, envPath string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		cfg = config.Default()
	}
	cfg.ApplyEnv(envPath)
	return cfg, err
}

func runLoop(ctx context.Context, svc *bot.Service, interval time.Duration, log zerolog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		snap := svc.Tick(ctx)
		evt := log.Info()
		if snap.Error != "" {
			evt = log.Warn().Str("error", snap.Error)
		}
		evt.Str("status", string(snap.OrderResult.Status)).
			Float64("equity", snap.AccountCards.Equity).
			Float64("realized", snap.AccountCards.RealizedPnL).
			Msg("tick done")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
