// Package main starts the stocktide terminal client.
//
// The process is a thin shell over the cached inventory view: one-shot
// subcommands query and mutate through the gateway, and watch keeps the
// local cache live against the push channel.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	stocktidecmd "github.com/stocktide/stocktide/internal/cmd/stocktide"
)

func main() {
	cfg, args, err := stocktidecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[STOCKTIDE] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := stocktidecmd.Run(ctx, cfg, args, os.Stdout); err != nil {
		log.Fatalf("failed to run: %v", err)
	}
}
