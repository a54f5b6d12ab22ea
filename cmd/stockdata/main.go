// Command stockdata is the market-data CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Hrushikesh9921/AIStockAnalyser/internal/cli"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/config"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/logging"
)

func main() {
	cfg, err := config.Load(configDir(os.Args[1:]))
	if err != nil {
		cli.ReportError(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.NewLoggerWithConfig(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, cli.NewApp(cfg, logger), os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// configDir finds --config before cobra parses flags, so a broken default
// configuration does not hide an explicit one.
func configDir(args []string) string {
	for i, a := range args {
		switch {
		case a == "--":
			return ""
		case a == "--config" && i+1 < len(args):
			return args[i+1]
		case strings.HasPrefix(a, "--config="):
			return strings.TrimPrefix(a, "--config=")
		}
	}
	return ""
}

