package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/condohub/condofee/internal/cli"
	"github.com/condohub/condofee/internal/client"
	"github.com/condohub/condofee/internal/client/session"
	"github.com/condohub/condofee/internal/client/tokenstore"
	"go.uber.org/zap"
)

const defaultConfigPath = "condoctl.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	baseURL := flag.String("base", "", "Override base URL")
	timeout := flag.Duration("timeout", 0, "Override HTTP timeout (e.g. 10s)")
	tokenPath := flag.String("tokens", "", "Override token file path")
	debug := flag.Bool("debug", false, "Log client decisions to stderr")
	flag.Parse()

	cfg, err := cli.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *tokenPath != "" {
		cfg.TokenPath = *tokenPath
	}

	logger := zap.NewNop()
	if *debug || cfg.Debug {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	store := tokenstore.Open(cfg.TokenPath, logger)
	c := client.New(cfg.BaseURL, store, client.WithTimeout(cfg.Timeout), client.WithLogger(logger))
	state := session.NewState()
	manager := session.NewManager(c, state, logger)

	repl, err := cli.NewREPL(cfg.HistoryFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if err := manager.Bootstrap(ctx); err != nil {
		fmt.Fprintf(repl.Stdout(), "stored session expired, please log in again\n")
	} else if u := state.User(); u != nil {
		fmt.Fprintf(repl.Stdout(), "welcome back, %s\n", u.FullName)
	}

	shell := cli.NewShell(c, manager, repl, repl.Stdout(), *cfg.PrettyJSON, logger)
	repl.Attach(shell, state)

	if err := repl.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
