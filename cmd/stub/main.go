// Package main starts the development stub inventory service.
//
// The stub speaks the same HTTP and push contract as the real backend so the
// client and its cache can be exercised without one.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	stubcmd "github.com/stocktide/stocktide/internal/cmd/stub"
)

func main() {
	cfg, err := stubcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[STUB] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := stubcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
