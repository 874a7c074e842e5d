// Binary executor runs a single tick (or a close-all) and prints the resulting snapshot as JSON.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"

	"tradebot/internal/bot"
	"tradebot/internal/config"
	"tradebot/internal/util"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to YAML config")
	envPath := flag.String("env", ".env", "optional dotenv file")
	closeAll := flag.Bool("close-all", false, "flatten the position instead of ticking")
	timeout := flag.Duration("timeout", 60*time.Second, "overall deadline")
	flag.Parse()

	cfg, cfgErr := config.Load(*configPath)
	if cfgErr != nil {
		cfg = config.Default()
	}
	cfg.ApplyEnv(*envPath)

	recent := util.NewRecentLogs(100)
	log := util.NewLoggerWithOptions(util.LogOptions{Level: cfg.App.LogLevel, Console: os.Stderr, Recent: recent})
	if cfgErr != nil {
		log.Warn().Err(cfgErr).Msg("config file unavailable, using defaults")
	}

	rt, err := bot.Wire(cfg, log, recent)
	if err != nil {
		log.Fatal().Err(err).Msg("wire bot")
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var snap bot.Snapshot
	if *closeAll {
		snap = rt.Service.CloseAll(ctx)
	} else {
		snap = rt.Service.Tick(ctx)
	}

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("encode snapshot")
		return
	}
	fmt.Println(string(out))
	if snap.Error != "" {
		rt.Close()
		os.Exit(1)
	}
}
