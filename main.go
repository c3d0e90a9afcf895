package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"

	"practice-insights/config"
	"practice-insights/export"
	"practice-insights/formatter"
	"practice-insights/history"
	"practice-insights/logger"
	"practice-insights/metrics"
	"practice-insights/models"
	"practice-insights/parser"
	"practice-insights/pipeline"
	"practice-insights/server"
	"practice-insights/share"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Define flags
	appointments := flag.String("appointments", "", "Appointments CSV file (required unless -serve)")
	dna := flag.String("dna", "", "DNA CSV file")
	unused := flag.String("unused", "", "Unused slots CSV file")
	online := flag.String("online", "", "Online requests CSV file")
	workforce := flag.String("workforce", "", "Workforce CSV file")
	followUp := flag.String("followup", "", "Comma-separated follow-up CSV files")
	telephony := flag.String("telephony", "", "Comma-separated telephony report text files")
	population := flag.Float64("population", cfg.Analysis.Population, "Registered practice population")
	useTelephony := flag.Bool("use-telephony", cfg.Analysis.UseTelephony, "Merge telephony reports into months")
	useOnline := flag.Bool("use-online", cfg.Analysis.UseOnline, "Merge online requests into months")
	forecastPeriods := flag.Int("forecast-periods", cfg.Analysis.Projections(), "Months to project beyond the data (0 = none)")
	format := flag.String("format", "text", "Output format: text|json|csv")
	shareRun := flag.Bool("share", false, "Save the run as a share snapshot and print its id")
	exportRun := flag.Bool("export", false, "Upload reports to the configured MinIO bucket")
	recordRun := flag.Bool("history", false, "Record the run in the configured Postgres database")
	serve := flag.Bool("serve", false, "Run the HTTP API instead of a single processing run")
	metricsAddr := flag.String("metrics-addr", "", "Address to expose Prometheus metrics (e.g., :9090)")
	pushGateway := flag.String("push-url", "", "Pushgateway URL to push metrics to (e.g., http://localhost:9091)")
	wait := flag.Bool("wait", false, "Keep process running after completion to allow for metric scraping")

	// Parse command-line flags
	flag.Parse()

	log, err := logger.New(cfg.App, cfg.Logger)
	if err != nil {
		fmt.Printf("Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := shareStore(ctx, cfg)
	if err != nil {
		log.Fatal("share store unavailable", zap.Error(err))
	}

	var runs *history.Store
	if *recordRun || (*serve && cfg.Postgres.URL != "") {
		if runs, err = openHistory(ctx, cfg.Postgres); err != nil {
			log.Fatal("run history unavailable", zap.Error(err))
		}
		defer runs.Close()
	}

	if *serve {
		opts := server.Options{
			Store:          store,
			Analysis:       cfg.Analysis,
			EndpointPrefix: cfg.App.EndpointPrefix,
			MaxRequests:    cfg.App.MaxRequests,
			BodyLimit:      int64(cfg.App.BodyLimitInMegabyte) << 20,
		}
		if runs != nil {
			opts.History = runs
		}
		timeout := time.Duration(cfg.App.ShutdownTimeout) * time.Second
		if err := server.New(log, opts).Serve(ctx, cfg.App.Port, timeout); err != nil && err != http.ErrServerClosed {
			log.Fatal("api server stopped", zap.Error(err))
		}
		return
	}

	// Start metrics server if address provided
	if *metricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
			log.Info("metrics server listening", zap.String("addr", *metricsAddr))
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	// Validate required input flag
	if *appointments == "" {
		fmt.Println("Error: -appointments flag is required")
		fmt.Println("\nUsage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Validate format enum
	validFormats := map[string]bool{"text": true, "json": true, "csv": true}
	if !validFormats[*format] {
		fmt.Printf("Error: format must be one of: text, json, csv (got: %s)\n", *format)
		os.Exit(1)
	}

	analysis := cfg.Analysis
	analysis.Population = *population
	analysis.UseTelephony = *useTelephony
	analysis.UseOnline = *useOnline
	analysis.ForecastPeriods = models.RequestedForecastPeriods(*forecastPeriods)
	if err := config.ValidateStruct(analysis); err != nil {
		fmt.Printf("Error: invalid analysis options: %v\n", err)
		os.Exit(1)
	}

	in, closeAll, err := openInputs(*appointments, *dna, *unused, *online, *workforce, *followUp, *telephony)
	defer closeAll()
	if err != nil {
		fmt.Printf("Error opening input: %v\n", err)
		os.Exit(1)
	}

	res, err := pipeline.Process(in, analysis, log)
	if err != nil {
		fmt.Printf("Error processing files: %v\n", err)
		os.Exit(1)
	}

	// Output based on format
	switch *format {
	case "json":
		fmt.Print(formatter.FormatJSON(res))
	case "csv":
		fmt.Print(formatter.FormatCSV(res))
	default: // "text"
		fmt.Print(formatter.FormatText(res))
	}

	if *shareRun {
		id, err := store.Save(ctx, share.FromResult(res))
		if err != nil {
			log.Error("saving share snapshot failed", zap.Error(err))
		} else {
			fmt.Printf("\nShare id: %s\n", id)
		}
	}

	if runs != nil {
		if err := runs.SaveRun(ctx, res); err != nil {
			log.Error("recording run failed", zap.String("run_id", res.RunID), zap.Error(err))
		}
	}

	if *exportRun {
		if err := exportReports(ctx, cfg.Minio, res, log); err != nil {
			log.Error("exporting reports failed", zap.Error(err))
		}
	}

	// Handle metrics pushing or waiting
	if *pushGateway != "" {
		jobName := "practice_insights"
		if err := push.New(*pushGateway, jobName).Gatherer(metrics.Registry).Push(); err != nil {
			fmt.Fprintf(os.Stderr, "Error pushing to Pushgateway: %v\n", err)
		} else {
			fmt.Println("\nMetrics successfully pushed to Pushgateway")
		}
	}

	if *wait && *metricsAddr != "" {
		fmt.Println("\nProcess kept alive for metric scraping. Press Ctrl+C to exit.")
		<-ctx.Done()
		fmt.Println("\nExiting...")
	} else if *metricsAddr != "" && *pushGateway == "" {
		time.Sleep(100 * time.Millisecond)
	}
}

// shareStore uses Redis when a host is configured and process memory
// otherwise.
func shareStore(ctx context.Context, cfg *config.Config) (share.Store, error) {
	ttl := time.Duration(cfg.App.ShareTTLInDays) * 24 * time.Hour
	if cfg.Redis.Addr() == "" {
		return share.NewMemoryStore(ttl), nil
	}
	client, err := share.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	return share.NewRedisStore(client, ttl), nil
}

func openHistory(ctx context.Context, cfg config.Postgres) (*history.Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	runs, err := history.Open(ctx, cfg.URL, cfg.Schema)
	if err != nil {
		return nil, err
	}
	if err := runs.EnsureSchema(ctx); err != nil {
		runs.Close()
		return nil, err
	}
	return runs, nil
}

func exportReports(ctx context.Context, cfg config.Minio, res *pipeline.Result, log *zap.Logger) error {
	client, err := export.NewMinio(cfg)
	if err != nil {
		return err
	}
	storage, err := export.NewMinioStorage(ctx, client, cfg.BucketName)
	if err != nil {
		return err
	}
	keys, err := export.Reports(ctx, storage, "reports", res, log)
	for _, k := range keys {
		fmt.Printf("Uploaded %s\n", k)
	}
	return err
}

// openInputs opens every named file. The returned func closes them and is
// safe to call on error.
func openInputs(appointments, dna, unused, online, workforce, followUp, telephony string) (pipeline.Inputs, func(), error) {
	var (
		in     pipeline.Inputs
		opened []*os.File
	)
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	open := func(name string) (*parser.Source, error) {
		if name == "" {
			return nil, nil
		}
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		opened = append(opened, f)
		return &parser.Source{Name: name, Reader: f}, nil
	}

	var err error
	for _, slot := range []struct {
		name string
		dst  **parser.Source
	}{
		{appointments, &in.Appointments},
		{dna, &in.DNA},
		{unused, &in.Unused},
		{online, &in.Online},
		{workforce, &in.Workforce},
	} {
		if *slot.dst, err = open(slot.name); err != nil {
			return in, closeAll, err
		}
	}

	for _, name := range splitList(followUp) {
		src, err := open(name)
		if err != nil {
			return in, closeAll, err
		}
		in.FollowUp = append(in.FollowUp, *src)
	}
	for _, name := range splitList(telephony) {
		text, err := os.ReadFile(name)
		if err != nil {
			return in, closeAll, err
		}
		in.Telephony = append(in.Telephony, pipeline.TelephonyText{Name: name, Text: string(text)})
	}
	return in, closeAll, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
