package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/ligustah/gulp/internal/config"
	"github.com/ligustah/gulp/internal/downloader"
	gulphttp "github.com/ligustah/gulp/internal/http"
	"github.com/ligustah/gulp/internal/metrics"
	"github.com/ligustah/gulp/internal/progress"
	"github.com/ligustah/gulp/internal/report"
	"github.com/ligustah/gulp/internal/store"
	"github.com/ligustah/gulp/internal/targets"
)

// runFetch downloads every given URL concurrently. Per-URL failures are
// reported but do not change the exit code.
func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "YAML configuration file")
	envFile := fs.String("env-file", ".env", "Load GULP_ variables from this file if it exists")
	output := fs.String("output", "", "Output directory (default \"temp\" in the working directory)")
	bucket := fs.String("bucket", "", "Destination bucket URL instead of a local directory")
	concurrency := fs.Int("concurrency", 16, "Max concurrent requests and transfers (0 = unbounded)")
	listFile := fs.String("list", "", "File with one URL per line (- for stdin)")
	page := fs.String("page", "", "HTML page whose links are downloaded")
	pageExt := fs.String("page-ext", "", "Comma-separated extensions to keep from -page links")
	showProgress := fs.Bool("progress", false, "Print a periodic status line")
	reportPath := fs.String("report", "", "Write a JSON run report to this file")
	metricsFile := fs.String("metrics-file", "", "Write Prometheus metrics to this textfile")
	timeout := fs.Duration("timeout", 0, "Per-request timeout including the body (0 = none)")
	proxy := fs.String("proxy", "", "HTTP proxy URL")
	userAgent := fs.String("user-agent", "", "User-Agent header")

	fs.Usage = func() {
		fmt.Fprintln(stderr, `Usage: gulp fetch [options] URL...

Download every URL concurrently. Each file is named after the last path
segment of its final (post-redirect) URL. Existing files are never
overwritten. Responses other than 200 OK are dropped.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	cfg = cfg.Merge(config.Config{
		Output:      *output,
		Bucket:      *bucket,
		Progress:    *showProgress,
		Report:      *reportPath,
		MetricsFile: *metricsFile,
		HTTP: config.HTTPConfig{
			Timeout:   *timeout,
			Proxy:     *proxy,
			UserAgent: *userAgent,
		},
	})
	// Merge ignores zero values, but -concurrency 0 is meaningful.
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "concurrency" {
			cfg.Concurrency = *concurrency
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(stderr, "\n[gulp] Received interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	urls, code := collectURLs(ctx, cfg, *listFile, *page, *pageExt, fs.Args())
	if code != ExitSuccess {
		return code
	}
	if len(urls) == 0 {
		fmt.Fprintln(stderr, "Error: no URLs given")
		fs.Usage()
		return ExitInvalidArgs
	}

	tgts, err := downloader.ParseTargets(urls)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening output: %v\n", err)
		return ExitStorageError
	}
	defer st.Close()

	reporter := progress.NewReporter(progress.Options{
		Output:         stderr,
		UpdateInterval: 5 * time.Second,
		TotalTargets:   len(tgts),
	})
	if cfg.Progress {
		reporter.Start()
	}
	defer reporter.Stop()

	observers := downloader.Observers{reporter}
	var m *metrics.Metrics
	if cfg.MetricsFile != "" {
		m = metrics.New()
		observers = append(observers, m)
	}

	res, err := downloader.Run(ctx, tgts, downloader.Options{
		Store:       st,
		HTTPOptions: cfg.HTTPOptions(),
		Concurrency: cfg.Concurrency,
		Observer:    observers,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, gulphttp.ErrInvalidProxy) {
			return ExitInvalidArgs
		}
		return ExitStorageError
	}

	code = ExitSuccess
	if cfg.Report != "" {
		if err := report.FromResult(res, st.Location("")).Write(cfg.Report); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			code = ExitGeneralError
		} else {
			fmt.Fprintf(stderr, "[gulp] Report: %s\n", cfg.Report)
		}
	}
	if m != nil {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			code = ExitGeneralError
		}
	}

	if ctx.Err() != nil {
		fmt.Fprintln(stderr, "[gulp] Fetch interrupted")
		return ExitGeneralError
	}
	return code
}

// loadConfig layers the .env file, the YAML file, and GULP_ variables.
func loadConfig(configPath, envFile string) (config.Config, error) {
	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return config.Config{}, err
		}
	}

	cfg := config.Default()
	if configPath != "" {
		c, err := config.LoadFromFile(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = c
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// collectURLs gathers targets from the config, the list file, the index
// page, and the command line, in that order.
func collectURLs(ctx context.Context, cfg config.Config, listFile, page, pageExt string, args []string) ([]string, int) {
	urls := append([]string(nil), cfg.URLs...)

	if listFile != "" {
		list, err := targets.ReadListFile(listFile)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return nil, ExitInvalidArgs
		}
		urls = append(urls, list...)
	}

	if page != "" {
		client, err := gulphttp.NewClient(cfg.HTTPOptions())
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return nil, ExitInvalidArgs
		}
		links, err := targets.FromPage(ctx, client, page, targets.PageOptions{
			Extensions: strings.Split(pageExt, ","),
		})
		if err != nil {
			fmt.Fprintf(stderr, "Error reading page: %v\n", err)
			return nil, ExitSourceNotAccess
		}
		fmt.Fprintf(stderr, "[gulp] %d links found on %s\n", len(links), page)
		urls = append(urls, links...)
	}

	return append(urls, args...), ExitSuccess
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.Bucket != "" {
		return store.OpenBucket(ctx, cfg.Bucket)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return store.NewLocal(cfg.OutputDir(cwd)), nil
}
