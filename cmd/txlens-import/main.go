// Command txlens-import manages the transaction store from the shell, using
// the same services as the web dashboard.
//
// Usage:
//
//	txlens-import [-db path] import <file.csv>...
//	txlens-import [-db path] export [path.csv|path.xlsx]
//	txlens-import [-db path] exclude <merchant>
//	txlens-import [-db path] reinstate
//	txlens-import [-db path] search <query>
//	txlens-import [-db path] summary
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"txlens/internal/cli"
	"txlens/internal/config"
	"txlens/internal/core"
	"txlens/internal/export"
	"txlens/internal/ingest"
	applog "txlens/internal/log"
	"txlens/internal/services"
	"txlens/internal/storage"
)

var errUsage = errors.New("usage: txlens-import [-db path] import|export|exclude|reinstate|search|summary [args]")

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(applog.ComponentCLI)
	cfg := cli.LoadAndValidateConfig(logger.Slog())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		logger.Error("Command failed", applog.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("txlens-import", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dbPath := fs.String("db", cfg.SQLiteDBPath, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() == 0 {
		return errUsage
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	repo, err := storage.NewSQLiteRepository(*dbPath)
	if err != nil {
		return err
	}
	logger := slog.Default()
	dashboard := cli.NewDashboard(logger, cfg, repo, cli.InitAMQP(logger, cfg))
	defer dashboard.Close()

	switch cmd {
	case "import":
		return runImport(ctx, dashboard, rest, out)
	case "export":
		return runExport(ctx, dashboard, rest, out)
	case "exclude":
		if len(rest) == 0 {
			return errUsage
		}
		merchant := strings.Join(rest, " ")
		if err := dashboard.ExcludeMerchant(ctx, merchant); err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %q from metrics\n", strings.TrimSpace(merchant))
		return nil
	case "reinstate":
		n, err := dashboard.ReinstateAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Reinstated %d merchants\n", n)
		return nil
	case "search":
		if len(rest) == 0 {
			return errUsage
		}
		return runSearch(ctx, dashboard, strings.Join(rest, " "), out)
	case "summary":
		return runSummary(ctx, dashboard, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func runImport(ctx context.Context, dashboard *services.Dashboard, paths []string, out io.Writer) error {
	if len(paths) == 0 {
		return errUsage
	}

	sources := make([]ingest.Source, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("open %s: %w", p, err)
		}
		defer f.Close()
		sources = append(sources, ingest.Source{Name: filepath.Base(p), Reader: f})
	}

	results, err := dashboard.Ingest(ctx, sources)
	for _, r := range results {
		fmt.Fprintf(out, "%s: %d rows (batch %s)\n", r.File, r.Rows, r.BatchID)
		for _, w := range r.Warnings {
			fmt.Fprintf(out, "  warning: %s\n", w)
		}
	}
	return err
}

func runExport(ctx context.Context, dashboard *services.Dashboard, args []string, out io.Writer) error {
	if len(args) == 0 {
		path, n, err := dashboard.ExportCSV(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Exported %d rows to %s\n", n, path)
		return nil
	}

	path := args[0]
	txs, err := dashboard.FilteredTransactions(ctx)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := export.WriteXLSX(f, txs); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
	} else if err := export.WriteCSVFile(path, txs); err != nil {
		return err
	}
	fmt.Fprintf(out, "Exported %d rows to %s\n", len(txs), path)
	return nil
}

func runSearch(ctx context.Context, dashboard *services.Dashboard, query string, out io.Writer) error {
	report, err := dashboard.Search(ctx, query)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Matches: %d\nTotal: %s\n", len(report.Matches), core.FormatMoney(report.Total))
	if report.HasMonths {
		fmt.Fprintf(out, "Monthly average: %s\n", core.FormatMoney(report.MonthlyAverage))
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, t := range report.Matches {
		amount := ""
		if t.Amount.Valid {
			amount = core.FormatMoney(t.Amount.Decimal)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Date, t.Description, t.Category, amount)
	}
	return tw.Flush()
}

func runSummary(ctx context.Context, dashboard *services.Dashboard, out io.Writer) error {
	ov, err := dashboard.Overview(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Stored rows: %d\nRows in view: %d\nTotal: %s\n",
		ov.StoredRows, ov.FilteredRows, core.FormatMoney(ov.Total))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nTop merchants")
	for _, m := range ov.TopMerchants {
		fmt.Fprintf(tw, "  %s\t%s\n", m.Description, core.FormatMoney(m.Total))
	}
	fmt.Fprintln(tw, "\nCategories")
	for _, c := range ov.Categories {
		fmt.Fprintf(tw, "  %s\t%s\n", c.Category, core.FormatMoney(c.Total))
	}
	fmt.Fprintln(tw, "\nMonths")
	for _, m := range ov.Trend.Months {
		fmt.Fprintf(tw, "  %s\t%s\n", m.Month, core.FormatMoney(m.Total))
	}
	if !ov.Trend.Undated.IsZero() {
		fmt.Fprintf(tw, "  undated\t%s\n", core.FormatMoney(ov.Trend.Undated))
	}
	if len(ov.Excluded) > 0 {
		fmt.Fprintf(tw, "\nRemoved from metrics: %s\n", strings.Join(ov.Excluded, ", "))
	}
	return tw.Flush()
}
