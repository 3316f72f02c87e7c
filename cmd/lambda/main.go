package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/blackmichael/esaver-notifier/internal/app"
	"github.com/blackmichael/esaver-notifier/internal/config"
	"github.com/blackmichael/esaver-notifier/internal/httpserver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// No /metrics on a function instance.
	a, err := app.New(context.Background(), cfg, nil, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	server := httpserver.NewServer(cfg, a.Service, nil, logger)
	lambda.Start(httpserver.LambdaHandler(server.Handler()))
	return nil
}
