// Package stub parses stub server flags and runs the development inventory
// service.
package stub

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	entrypoint "github.com/stocktide/stocktide/internal/platform/cmd"

	"github.com/stocktide/stocktide/internal/inventory"
	"github.com/stocktide/stocktide/internal/stub"
)

const shutdownTimeout = 5 * time.Second

// Config holds stub server configuration.
type Config struct {
	Addr string `env:"STOCKTIDE_STUB_ADDR" envDefault:":8000"`
	Seed bool   `env:"STOCKTIDE_STUB_SEED"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.BoolVar(&cfg.Seed, "seed", cfg.Seed, "start with sample inventory")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run serves the stub inventory service until ctx is canceled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceStub, func(ctx context.Context) error {
		server := stub.New()
		if cfg.Seed {
			seed(server)
		}

		srv := &http.Server{
			Addr:        cfg.Addr,
			Handler:     server.Handler(),
			BaseContext: func(net.Listener) context.Context { return ctx },
		}

		errc := make(chan error, 1)
		go func() {
			log.Printf("stub listening on %s", cfg.Addr)
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			return fmt.Errorf("serve: %w", err)
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
}

// seed loads a small inventory so the client has something to show.
func seed(server *stub.Server) {
	shelf := server.SeedContainer(inventory.Container{Name: "Shelf A", Location: "workshop"})
	bin := server.SeedContainer(inventory.Container{Name: "Small parts bin", Location: "workshop", ParentContainerID: shelf.ID})

	low := 100.0
	server.SeedItem(inventory.Item{
		ItemType: inventory.TypeConsumable, Name: "M3 screws", Category: "fasteners",
		Quantity: 42, Unit: "pcs", MinStock: &low, ContainerID: bin.ID,
		Status: inventory.StatusInStock,
	})
	server.SeedItem(inventory.Item{
		ItemType: inventory.TypeConsumable, Name: "Solder wire", Category: "solder",
		Quantity: 3, Unit: "rolls", ContainerID: shelf.ID,
		Status: inventory.StatusInStock,
	})
	server.SeedItem(inventory.Item{
		ItemType: inventory.TypeAsset, Name: "Oscilloscope", Category: "instruments",
		Quantity: 1, Status: inventory.StatusInService, ContainerID: shelf.ID,
	})
}
