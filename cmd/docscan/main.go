package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/document-verifier/internal/adapters/cli"
	"github.com/kirillkom/document-verifier/internal/bootstrap"
	"github.com/kirillkom/document-verifier/internal/config"
	"github.com/kirillkom/document-verifier/internal/core/domain"
	"github.com/kirillkom/document-verifier/internal/observability/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 2
	}
	logLevel := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		logLevel = "warn"
	}
	logger := logging.NewLogger(os.Stderr, "text", "docscan", logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{Service: "docscan"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap error: %v\n", err)
		return 2
	}
	defer app.Close()

	root := cli.NewRootCommand(cli.Dependencies{
		Service: app.ExtractionUC,
		Timeout: cfg.AnalysisTimeout + 10*time.Second,
	})
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, cli.ErrExtractionFailed) {
			fmt.Fprintln(os.Stderr, domain.UserMessage(err, err.Error()))
		}
		return 1
	}
	return 0
}
