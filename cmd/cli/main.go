package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/optifi/internal/config"
	"github.com/dvloznov/optifi/internal/domain"
	"github.com/dvloznov/optifi/internal/financials"
	"github.com/dvloznov/optifi/internal/gcsexport"
	"github.com/dvloznov/optifi/internal/infra"
	"github.com/dvloznov/optifi/internal/logger"
	"github.com/dvloznov/optifi/internal/notionsync"
	"github.com/dvloznov/optifi/internal/pipeline"
	"github.com/dvloznov/optifi/internal/reconcile"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.FromEnv()
	log := logger.NewFromOptions(os.Stderr, logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	switch os.Args[1] {
	case "sync":
		runSync(cfg, log)
	case "reconcile":
		runReconcile(cfg, log)
	case "preview":
		runPreview(cfg, log)
	case "financials":
		runFinancials(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Optifi CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  sync        Derive bank transactions from sales and ledger, then upsert them")
	fmt.Println("  reconcile   Match bank transactions against the ledger")
	fmt.Println("  preview     Show the most recent derived bank transactions without writing")
	fmt.Println("  financials  Print the monthly revenue and margin summary")
	fmt.Println("  help        Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func openBackend(cfg config.Config, log zerolog.Logger) (context.Context, infra.Backend) {
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	ctx := logger.WithContext(context.Background(), log)
	backend, err := infra.OpenBackend(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open store")
	}
	return ctx, backend
}

func runSync(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	days := fs.Int("days", pipeline.DefaultWindowDays, "Window length in days")
	startDaysAgo := fs.Int("start-days-ago", domain.DefaultStartDaysAgo, "Days before today the window starts (default days-1)")
	dryRun := fs.Bool("dry-run", false, "Compute the write-set without writing it")
	atomic := fs.Bool("atomic", false, "Apply all upserts in one transaction")
	fs.Parse(os.Args[2:])

	window, err := domain.LastNDays(time.Now(), *days, *startDaysAgo)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid window")
	}

	ctx, backend := openBackend(cfg, log)
	defer backend.Close()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	log.Info().Str("window", window.String()).Bool("dry_run", *dryRun).Bool("atomic", *atomic).Msg("Starting sync")

	result, err := pipeline.Sync(ctx, backend, window, pipeline.Options{DryRun: *dryRun, Atomic: *atomic})
	if err != nil {
		if result != nil {
			log.Error().Int("written", result.Written).Int("pending", len(result.Pending())).Msg("Sync stopped early")
			printJSON(result.Pending())
		}
		log.Fatal().Err(err).Msg("Sync failed")
	}

	if *dryRun {
		printJSON(result.Planned)
		return
	}
	fmt.Printf("Synced %d bank transactions (%d deposits, %d withdrawals) for %s\n",
		result.Written, result.DepositCount, result.WithdrawalCount, window)
}

func runReconcile(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	oracleURL := fs.String("oracle-url", cfg.OracleURL, "Reconciliation proxy base URL; empty calls Gemini directly")
	export := fs.Bool("export", false, "Write the partition to GCS_BUCKET")
	notion := fs.Bool("notion", false, "Publish reconciliation status to Notion")
	prune := fs.Bool("prune", false, "Archive Notion pages with no matching bank transaction")
	fs.Parse(os.Args[2:])
	cfg.OracleURL = *oracleURL

	ctx, backend := openBackend(cfg, log)
	defer backend.Close()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	matcher, err := infra.OpenMatcher(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create match oracle")
	}
	svc := &reconcile.Service{Tables: backend, Matcher: matcher}

	if *export {
		if err := cfg.RequireGCS(); err != nil {
			log.Fatal().Err(err).Msg("Export requested")
		}
		writer, err := gcsexport.NewGCSWriter(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer writer.Close()
		svc.Exporter = gcsexport.NewExporter(writer, cfg.GCSBucket)
	}
	if *notion {
		publisher, err := infra.OpenNotionPublisher(cfg, notionsync.Options{Prune: *prune})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Notion publisher")
		}
		svc.Publisher = publisher
	}

	result, err := svc.Run(ctx)
	if result != nil {
		printJSON(result)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Reconciliation failed")
	}
}

func runPreview(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	days := fs.Int("days", pipeline.DefaultWindowDays, "Window length in days")
	limit := fs.Int("limit", pipeline.DefaultRecentViewSize, "Rows to show")
	export := fs.Bool("export", false, "Also write the full bank view to GCS_BUCKET")
	fs.Parse(os.Args[2:])

	window, err := domain.LastNDays(time.Now(), *days, domain.DefaultStartDaysAgo)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid window")
	}

	ctx, backend := openBackend(cfg, log)
	defer backend.Close()

	state, err := pipeline.Prepare(ctx, backend, window)
	if err != nil {
		log.Fatal().Err(err).Msg("Preview failed")
	}

	if *export {
		if err := cfg.RequireGCS(); err != nil {
			log.Fatal().Err(err).Msg("Export requested")
		}
		writer, err := gcsexport.NewGCSWriter(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer writer.Close()
		uri, err := gcsexport.NewExporter(writer, cfg.GCSBucket).ExportBankView(ctx, window, state.Batch)
		if err != nil {
			log.Fatal().Err(err).Msg("Export failed")
		}
		log.Info().Str("uri", uri).Int("rows", len(state.Batch)).Msg("Exported bank view")
	}

	printJSON(pipeline.RecentView(state.Batch, *limit))
}

func runFinancials(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("financials", flag.ExitOnError)
	month := fs.String("month", time.Now().Format("2006-01"), "Month as YYYY-MM")
	fs.Parse(os.Args[2:])

	t, err := time.Parse("2006-01", *month)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: --month must be YYYY-MM")
	}

	ctx, backend := openBackend(cfg, log)
	defer backend.Close()

	summary, err := financials.MonthlySummary(ctx, backend, domain.MonthOf(civil.DateOf(t)))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute summary")
	}
	printJSON(summary)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
	}
}
