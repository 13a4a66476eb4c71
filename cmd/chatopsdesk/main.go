package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/chatopsdesk/chatopsdesk/internal/config"
	"github.com/chatopsdesk/chatopsdesk/internal/daemon"
	"github.com/chatopsdesk/chatopsdesk/pkg/clog"
)

var version = "dev"

var (
	app = kingpin.New("chatopsdesk", "Local ChatOps desk: chat and pr-to-main tasks with live events")

	serveCmd = app.Command("serve", "Run the HTTP server").Default()

	checkCmd = app.Command("check", "Report which secrets each task type is missing")
)

func main() {
	app.Version(version)
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// The dotenv file may carry CHATOPS_ settings, so it is applied first.
	secrets, err := config.LoadSecrets(config.DotenvPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading secrets: %v\n", err)
		os.Exit(1)
	}

	switch command {
	case serveCmd.FullCommand():
		os.Exit(serve(secrets))
	case checkCmd.FullCommand():
		os.Exit(check(os.Stdout, secrets.Snapshot()))
	}
}

func serve(secrets *config.SecretStore) int {
	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading env: %v\n", err)
		return 1
	}

	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(ctx, env, secrets, version)
	if err != nil {
		slog.Error("failed to start", "error", err)
		return 1
	}
	if err := d.Run(ctx); err != nil {
		slog.Error("daemon stopped", "error", err)
		return 1
	}
	return 0
}
