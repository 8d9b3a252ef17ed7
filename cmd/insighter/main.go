package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/godilite/insighter/internal/app"
	"github.com/godilite/insighter/internal/config"
	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func main() {
	mode := flag.String("mode", "run", "run | rebuild | serve")
	input := flag.String("input", "", "conversation JSON file or directory (run mode)")
	group := flag.String("group", "", "model group to rebuild; empty rebuilds every stored group")
	flag.Parse()

	_ = godotenv.Load(".env")

	cfg := config.LoadFromEnv()

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}

	if err := run(ctx, application, *mode, *input, *group, logger); err != nil {
		_ = application.Close()
		logger.Fatal("Application exited with error", zap.String("mode", *mode), zap.Error(err))
	}
	_ = application.Close()
}

func run(ctx context.Context, application *app.App, mode, input, group string, logger *zap.Logger) error {
	switch mode {
	case "run":
		if input == "" {
			return errors.New("-input is required in run mode")
		}
		report, err := application.RunPipeline(ctx, input)
		if err != nil {
			return err
		}
		for _, g := range report.Groups {
			logger.Info("group result",
				zap.String("group", g.Group),
				zap.String("status", string(g.Status)),
				zap.Int("records", g.Records),
				zap.Int("discrepancies", g.Discrepancies),
				zap.String("error", g.Error))
		}
		return nil
	case "rebuild":
		reports, err := application.Rebuild(ctx, group)
		if err != nil {
			return err
		}
		logger.Info("rebuild finished", zap.Int("groups", len(reports)))
		return nil
	case "serve":
		return application.Serve(ctx)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}
