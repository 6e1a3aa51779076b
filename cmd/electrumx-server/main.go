// Command electrumx-server runs the indexing server: it keeps the history
// and UTXO index synchronized with a coin daemon and serves the wallet
// protocol over TCP, TLS and websockets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/electrumx-go/electrumx/config"
	"github.com/electrumx-go/electrumx/controller"
	"github.com/electrumx-go/electrumx/logctx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "electrumx-server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	if err := logctx.Init(cfg.LogFilePath()); err != nil {
		return err
	}
	logctx.SetLevels(logctx.LevelFromString(cfg.LogLevel))

	ctl, err := controller.New(cfg)
	if err != nil {
		return err
	}
	defer ctl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return ctl.Run(ctx)
}
