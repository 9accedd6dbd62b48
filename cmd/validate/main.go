// Command validate audits group data for problems that hide groups from the
// map or break their contact links. It reads either a live store or a seed
// file, which is loaded as written into a throwaway in-memory store.
//
// Usage:
//
//	go run ./cmd/validate --dsn postgres://locator@localhost/locator --driver postgres
//	go run ./cmd/validate --seed seeds/example.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jessevdk/go-flags"

	"github.com/celulas/locator/internal/audit"
	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/seed"
	"github.com/celulas/locator/internal/store"
)

type Options struct {
	Seed            string `short:"s" long:"seed" description:"Audit a seed file instead of the database"`
	Driver          string `long:"driver" env:"DATABASE_DRIVER" description:"Database driver" choice:"sqlite" choice:"postgres" default:"sqlite"`
	DSN             string `long:"dsn" env:"DATABASE_URL" description:"Database connection string" default:"file:locator.db"`
	DefaultCategory string `long:"default-category" env:"DEFAULT_CATEGORY" description:"Category substituted for unknown ones" default:"figueira"`
	LogLevel        string `long:"log-level" env:"LOG_LEVEL" description:"Log level" default:"error"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if code := run(opts); code != 0 {
		os.Exit(code)
	}
}

func run(opts Options) int {
	ctx := context.Background()
	logger := sharedobs.NewLogger(opts.LogLevel, "text")

	fmt.Println("=== Group Data Validation ===")
	fmt.Println()

	rows, err := loadRows(ctx, opts, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	report := audit.Run(rows, domain.Normalizer{DefaultCategoryID: opts.DefaultCategory})

	for _, p := range report.Phases {
		status := "\033[32mPASS\033[0m"
		if !p.Passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.Errors))
		}
		fmt.Printf("  %-42s %s\n", p.Name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d total, %d shown on the map\n", report.Rows, report.Accepted)

	for _, p := range report.Phases {
		if p.Passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.Name)
		for i, e := range p.Errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if report.Passed() {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadRows(ctx context.Context, opts Options, logger *slog.Logger) ([]domain.RawRow, error) {
	if opts.Seed == "" {
		st, err := store.Open(ctx, opts.Driver, opts.DSN, logger)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		return st.FetchGroups(ctx)
	}

	in, err := os.Open(opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer in.Close()

	file, err := seed.Parse(in)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, store.DriverSQLite, ":memory:", logger)
	if err != nil {
		return nil, fmt.Errorf("open scratch store: %w", err)
	}
	defer st.Close()

	if _, err := seed.Apply(ctx, seed.Direct(st), nil, file, logger); err != nil {
		return nil, err
	}
	return st.FetchGroups(ctx)
}
