// Command palletctl runs operator tasks against the palletkeeper database.
//
//	palletctl bootstrap   create the first administrator
//	palletctl sweep       deactivate expired sessions
//	palletctl version     print build information
//
// Configuration is read the same way as the server (-c, -env, flags).
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/palletkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/palletkeeper/internal/logging"
	"github.com/dmitrijs2005/palletkeeper/internal/palletctl"
	"github.com/dmitrijs2005/palletkeeper/internal/server"
	"github.com/dmitrijs2005/palletkeeper/internal/server/config"
	"github.com/dmitrijs2005/palletkeeper/internal/server/repositories/repomanager"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: palletctl <bootstrap|sweep|version> [flags]")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "version":
		buildinfo.PrintBuildData(os.Stdout)
		return
	case "bootstrap", "sweep":
	default:
		usage()
		os.Exit(2)
	}

	if err := run(cmd); err != nil {
		fmt.Fprintf(os.Stderr, "palletctl %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func run(cmd string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	repos := repomanager.NewPostgresRepositoryManager()
	db, err := server.OpenDatabase(ctx, cfg.DatabaseDSN, repos)
	if err != nil {
		return err
	}
	defer db.Close()

	stack, err := server.NewStack(cfg, db, repos, logger, nil)
	if err != nil {
		return err
	}

	switch cmd {
	case "bootstrap":
		return palletctl.Bootstrap(ctx, stack.Auth, bufio.NewReader(os.Stdin), os.Stdout)
	default:
		return palletctl.SweepSessions(ctx, stack.Sessions, os.Stdout)
	}
}
