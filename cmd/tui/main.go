package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"tradebot/internal/config"
	"tradebot/internal/util"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to YAML config")
	flag.Parse()

	reader := bufio.NewReader(os.Stdin)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config (%v), starting from defaults\n", err)
		cfg = config.Default()
	}

	for {
		fmt.Println("\n=== Tradebot Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit bankroll and risk knobs")
		fmt.Println("3) Edit mode, symbol and decider")
		fmt.Println("4) Save config")
		fmt.Println("5) Launch bot")
		fmt.Println("6) Run a single tick")
		fmt.Println("7) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editRisk(reader, cfg)
		case "3":
			editRouting(reader, cfg)
		case "4":
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "not saved: %v\n", err)
			} else if err := config.Save(*configPath, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "5":
			launch(reader, "./cmd/tradebot", "-config", *configPath)
		case "6":
			launch(reader, "./cmd/executor", "-config", *configPath)
		case "7":
			reloaded, err := config.Load(*configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Mode: %s (live trading enabled: %v)\n", cfg.Bot.Mode, cfg.Bot.LiveTradingEnabled)
	fmt.Printf("Symbol: %s on %s (testnet %v, feed %q)\n", cfg.Exchange.Symbol, cfg.Exchange.Name, cfg.Exchange.Testnet, cfg.Exchange.Feed)
	fmt.Printf("API key: %s\n", util.MaskSecret(cfg.Exchange.APIKey))
	fmt.Printf("Starting balance: $%.2f\n", cfg.Paper.StartingBalance)
	fmt.Printf("Position size: %.2f%% | max size: %.2f%%\n", cfg.Execution.PositionSizePct, cfg.Risk.MaxPositionSizePct)
	fmt.Printf("Max positions: %d | cooldown: %ds\n", cfg.Risk.MaxPositions, cfg.Risk.CooldownSeconds)
	fmt.Printf("Daily loss limit: $%.2f (0 disables)\n", cfg.Risk.MaxDailyLoss)
	fmt.Printf("Decider: %s (%s) | interval: %ds\n", cfg.Decider.Provider, cfg.Decider.Model, cfg.Bot.IntervalSeconds)
	fmt.Printf("History: %s at %s (capacity %d)\n", cfg.History.Backend, cfg.History.Path, cfg.History.Capacity)
}

func editRisk(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Risk / Bankroll ---")
	cfg.Paper.StartingBalance = promptFloat(reader, "Starting balance (USD)", cfg.Paper.StartingBalance)
	cfg.Execution.PositionSizePct = promptFloat(reader, "Position size (% of available)", cfg.Execution.PositionSizePct)
	cfg.Risk.MaxPositionSizePct = promptFloat(reader, "Max position size (%)", cfg.Risk.MaxPositionSizePct)
	cfg.Risk.MaxPositions = int(promptFloat(reader, "Max open positions", float64(cfg.Risk.MaxPositions)))
	cfg.Risk.MaxDailyLoss = promptFloat(reader, "Max daily loss (USD)", cfg.Risk.MaxDailyLoss)
	cfg.Risk.CooldownSeconds = int(promptFloat(reader, "Cooldown (seconds)", float64(cfg.Risk.CooldownSeconds)))
}

func editRouting(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Routing ---")
	cfg.Bot.Mode = strings.ToLower(promptString(reader, "Mode (paper|demo|live)", cfg.Bot.Mode))
	cfg.Exchange.Symbol = strings.ToUpper(promptString(reader, "Symbol", cfg.Exchange.Symbol))
	cfg.Decider.Provider = strings.ToLower(promptString(reader, "Decider (rule_based|openai|gemini|ollama)", cfg.Decider.Provider))
	cfg.Decider.Model = promptString(reader, "Model", cfg.Decider.Model)
	cfg.Bot.IntervalSeconds = int(promptFloat(reader, "Tick interval (seconds)", float64(cfg.Bot.IntervalSeconds)))
}

func launch(reader *bufio.Reader, pkg string, args ...string) {
	fmt.Printf("Launching %s (ENTER to stop)...\n", pkg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", append([]string{"run", pkg}, args...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func promptString(reader *bufio.Reader, label, current string) string {
	fmt.Printf("%s [%s]: ", label, current)
	line, _ := reader.ReadString('\n')
	if line = strings.TrimSpace(line); line == "" {
		return current
	}
	return line
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}
