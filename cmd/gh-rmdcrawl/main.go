package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/stahnma/gh-rmdcrawl/internal/commands"
	"github.com/stahnma/gh-rmdcrawl/internal/config"
	lambdapkg "github.com/stahnma/gh-rmdcrawl/internal/lambda"
	"github.com/stahnma/gh-rmdcrawl/internal/logging"
)

var (
	GitSHA   string
	GitDirty string
)

func main() {
	v := config.NewViper()
	cfg, err := config.Load(v)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logger, err := logging.New(cfg.DebugMode)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Sync()

	app := commands.NewApp(cfg, logger, GitSHA, GitDirty)
	app.Viper = v

	if os.Getenv("LAMBDA_TASK_ROOT") != "" {
		awslambda.Start(lambdapkg.NewHandler(app))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := app.NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		if serr := app.SaveCache(); serr != nil {
			logger.Warn("saving cache", zap.Error(serr))
		}
		os.Exit(1)
	}
	if err := app.SaveCache(); err != nil {
		logger.Fatal("Error saving cache", zap.Error(err))
	}
}
