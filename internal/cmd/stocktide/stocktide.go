// Package stocktide parses client command flags and runs the terminal
// client subcommands.
package stocktide

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"text/tabwriter"
	"time"

	entrypoint "github.com/stocktide/stocktide/internal/platform/cmd"

	"github.com/stocktide/stocktide/internal/auth"
	"github.com/stocktide/stocktide/internal/gateway"
	"github.com/stocktide/stocktide/internal/inventory"
	"github.com/stocktide/stocktide/internal/push"
	"github.com/stocktide/stocktide/internal/store"
)

// Config holds client command configuration.
type Config struct {
	BaseURL  string `env:"STOCKTIDE_API_BASE_URL" envDefault:"http://localhost:8000"`
	Token    string `env:"STOCKTIDE_TOKEN"`
	PageSize int    `env:"STOCKTIDE_PAGE_SIZE"   envDefault:"20"`
}

// ParseConfig parses environment and flags into a Config, returning the
// remaining positional arguments (subcommand and its own flags).
func ParseConfig(fs *flag.FlagSet, args []string) (Config, []string, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, nil, err
	}

	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "inventory service base URL")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "bearer credential")
	fs.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "default page size")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, nil, err
	}
	return cfg, fs.Args(), nil
}

const usage = "usage: stocktide [flags] <list|create|adjust|status|move|delete|containers|watch> [args]"

// Run dispatches a subcommand against the configured service.
func Run(ctx context.Context, cfg Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	if cfg.Token != "" && auth.Expired(cfg.Token, time.Now()) {
		log.Printf("stocktide: credential expired at %s; requests will likely be rejected", auth.Expiry(cfg.Token).Format(time.RFC3339))
	}

	var tokens auth.TokenSource
	if cfg.Token != "" {
		tokens = auth.Static(cfg.Token)
	}
	client := gateway.New(cfg.BaseURL, tokens, &http.Client{Timeout: 30 * time.Second})

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceClient, func(ctx context.Context) error {
		switch args[0] {
		case "list":
			return runList(ctx, cfg, client, args[1:], out)
		case "create":
			return runCreate(ctx, client, args[1:], out)
		case "adjust":
			return runAdjust(ctx, client, args[1:], out)
		case "status":
			return runStatus(ctx, client, args[1:], out)
		case "move":
			return runMove(ctx, client, args[1:], out)
		case "delete":
			return runDelete(ctx, client, args[1:], out)
		case "containers":
			return runContainers(ctx, client, out)
		case "watch":
			return runWatch(ctx, cfg, client, tokens, args[1:], out)
		}
		return fmt.Errorf("unknown subcommand %q\n%s", args[0], usage)
	})
}

func listFlags(name string) (*flag.FlagSet, *inventory.Filters, *int) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	filters := &inventory.Filters{}
	fs.StringVar(&filters.Type, "type", "", "item type (consumable|asset)")
	fs.StringVar(&filters.Category, "category", "", "category substring")
	fs.StringVar(&filters.Status, "status", "", "lifecycle status")
	fs.StringVar(&filters.ContainerID, "container", "", "container id")
	fs.StringVar(&filters.Search, "search", "", "free-text search")
	fs.BoolVar(&filters.LowStock, "low-stock", false, "only low-stock consumables")
	page := fs.Int("page", 1, "1-based page number")
	return fs, filters, page
}

func runList(ctx context.Context, cfg Config, client *gateway.Client, args []string, out io.Writer) error {
	fs, filters, page := listFlags("list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := client.ListItems(ctx, *filters, *page, cfg.PageSize)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	printItems(out, result.Items)
	fmt.Fprintf(out, "page %d of %d items\n", result.Page, result.Total)
	return nil
}

func printItems(out io.Writer, items []inventory.Item) {
	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tNAME\tCATEGORY\tQTY\tUNIT\tSTATUS\tLOW")
	for _, item := range items {
		low := ""
		if item.LowStock() {
			low = "!"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\t%s\t%s\n",
			item.ID, item.ItemType, item.Name, item.Category, item.Quantity, item.Unit, item.Status, low)
	}
	w.Flush()
}

func runCreate(ctx context.Context, client *gateway.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	draft := inventory.ItemDraft{}
	itemType := fs.String("type", "consumable", "item type (consumable|asset)")
	fs.StringVar(&draft.Name, "name", "", "item name (required)")
	fs.StringVar(&draft.Category, "category", "", "category (required)")
	fs.Float64Var(&draft.Quantity, "quantity", 1, "initial quantity")
	fs.StringVar(&draft.Unit, "unit", "", "unit label")
	fs.StringVar(&draft.SKU, "sku", "", "stock keeping unit")
	fs.StringVar(&draft.ContainerID, "container", "", "container id")
	minStock := fs.Float64("min-stock", -1, "minimum-stock threshold")
	if err := fs.Parse(args); err != nil {
		return err
	}
	draft.ItemType = inventory.ItemType(*itemType)
	if !draft.ItemType.Valid() {
		return fmt.Errorf("invalid item type %q", *itemType)
	}
	if draft.Name == "" || draft.Category == "" {
		return errors.New("create: -name and -category are required")
	}
	if *minStock >= 0 {
		draft.MinStock = minStock
	}

	item, err := client.CreateItem(ctx, draft)
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	fmt.Fprintf(out, "created %s (%s)\n", item.ID, item.Name)
	return nil
}

func runAdjust(ctx context.Context, client *gateway.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("adjust", flag.ContinueOnError)
	note := fs.String("note", "", "adjustment note")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 2 {
		return errors.New("usage: stocktide adjust [-note text] <item-id> <delta>")
	}
	delta, err := strconv.ParseFloat(rest[1], 64)
	if err != nil {
		return fmt.Errorf("parse delta %q: %w", rest[1], err)
	}

	item, err := client.AdjustQuantity(ctx, rest[0], delta, *note)
	if err != nil {
		return fmt.Errorf("adjust quantity: %w", err)
	}
	fmt.Fprintf(out, "%s now at %v %s\n", item.Name, item.Quantity, item.Unit)
	return nil
}

func runStatus(ctx context.Context, client *gateway.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	assignee := fs.String("assignee", "", "who the item is assigned to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 2 {
		return errors.New("usage: stocktide status [-assignee who] <item-id> <status>")
	}
	status := inventory.Status(rest[1])
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", rest[1])
	}

	item, err := client.ChangeStatus(ctx, rest[0], status, *assignee)
	if err != nil {
		return fmt.Errorf("change status: %w", err)
	}
	fmt.Fprintf(out, "%s is now %s\n", item.Name, item.Status)
	return nil
}

func runMove(ctx context.Context, client *gateway.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("move", flag.ContinueOnError)
	container := fs.String("container", "", "target container id (empty clears)")
	parent := fs.String("parent", "", "target parent item id (empty clears)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return errors.New("usage: stocktide move [-container id] [-parent id] <item-id>")
	}

	item, err := client.MoveItem(ctx, rest[0], *container, *parent)
	if err != nil {
		return fmt.Errorf("move item: %w", err)
	}
	fmt.Fprintf(out, "moved %s\n", item.Name)
	return nil
}

func runDelete(ctx context.Context, client *gateway.Client, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: stocktide delete <item-id>")
	}
	if err := client.DeleteItem(ctx, args[0]); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	fmt.Fprintf(out, "deleted %s\n", args[0])
	return nil
}

func runContainers(ctx context.Context, client *gateway.Client, out io.Writer) error {
	containers, err := client.ListContainers(ctx)
	if err != nil {
		return fmt.Errorf("list containers: %w", err)
	}
	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tLOCATION\tCODE")
	for _, container := range containers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", container.ID, container.Name, container.Location, container.QRCodeID)
	}
	w.Flush()
	return nil
}

// runWatch keeps a live cache and reprints the current page whenever local
// state changes, whether through a push notification or a refetch.
func runWatch(ctx context.Context, cfg Config, client *gateway.Client, tokens auth.TokenSource, args []string, out io.Writer) error {
	fs, filters, page := listFlags("watch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cache := store.New(client)
	if err := cache.SetPageSize(ctx, cfg.PageSize); err != nil {
		return fmt.Errorf("initial fetch: %w", err)
	}
	patch := inventory.FilterPatch{
		Type:        &filters.Type,
		Category:    &filters.Category,
		Status:      &filters.Status,
		ContainerID: &filters.ContainerID,
		Search:      &filters.Search,
		LowStock:    &filters.LowStock,
	}
	if err := cache.SetFilter(ctx, patch); err != nil {
		return fmt.Errorf("apply filters: %w", err)
	}
	if *page > 1 {
		if err := cache.SetPage(ctx, *page); err != nil {
			return fmt.Errorf("set page: %w", err)
		}
	}

	listener, err := push.New(push.Config{BaseURL: cfg.BaseURL, Tokens: tokens}, cache)
	if err != nil {
		return err
	}
	listenerDone := make(chan error, 1)
	go func() { listenerDone <- listener.Run(ctx) }()

	changes, cancel := cache.Subscribe()
	defer cancel()

	printSnapshot(out, cache.Snapshot())
	for {
		select {
		case <-ctx.Done():
			<-listenerDone
			return nil
		case <-changes:
			printSnapshot(out, cache.Snapshot())
		}
	}
}

func printSnapshot(out io.Writer, snap store.Snapshot) {
	if snap.Loading {
		return
	}
	fmt.Fprintf(out, "--- %s · page %d · %d total\n", time.Now().Format("15:04:05"), snap.Page, snap.Total)
	printItems(out, snap.Items)
}
