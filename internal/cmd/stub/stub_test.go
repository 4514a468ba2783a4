package stub

import (
	"context"
	"flag"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stocktide/stocktide/internal/auth"
	"github.com/stocktide/stocktide/internal/gateway"
	"github.com/stocktide/stocktide/internal/inventory"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("stub", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":8000" {
		t.Fatalf("unexpected default addr %q", cfg.Addr)
	}
	if cfg.Seed {
		t.Fatal("expected seeding off by default")
	}
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	t.Setenv("STOCKTIDE_STUB_ADDR", ":9100")

	fs := flag.NewFlagSet("stub", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-seed"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":9100" {
		t.Fatalf("expected env addr, got %q", cfg.Addr)
	}
	if !cfg.Seed {
		t.Fatal("expected -seed flag to enable seeding")
	}
}

func TestRunServesSeededInventory(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, Config{Addr: addr, Seed: true}) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("run returned %v", err)
		}
	})

	client := gateway.New("http://"+addr, auth.Static("dev"), http.DefaultClient)
	deadline := time.Now().Add(3 * time.Second)
	var page gateway.Page
	for time.Now().Before(deadline) {
		page, err = client.ListItems(ctx, inventory.Filters{}, 1, 20)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("list against running stub: %v", err)
	}
	if page.Total != 3 {
		t.Fatalf("expected 3 seeded items, got %d", page.Total)
	}

	containers, err := client.ListContainers(ctx)
	if err != nil {
		t.Fatalf("list containers: %v", err)
	}
	if len(containers) != 2 {
		t.Fatalf("expected 2 seeded containers, got %d", len(containers))
	}
}
