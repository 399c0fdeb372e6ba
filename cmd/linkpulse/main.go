package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/linkpulsehq/linkpulse/internal/config"
	"github.com/linkpulsehq/linkpulse/internal/engine"
	"github.com/linkpulsehq/linkpulse/internal/events"
	"github.com/linkpulsehq/linkpulse/internal/health"
	"github.com/linkpulsehq/linkpulse/internal/logging"
	"github.com/linkpulsehq/linkpulse/internal/metrics"
	"github.com/linkpulsehq/linkpulse/internal/probe"
	"github.com/linkpulsehq/linkpulse/internal/server"
	"github.com/linkpulsehq/linkpulse/internal/state"
)

const probeHTTPTimeout = 30 * time.Second

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = run(ctx, os.Args[2:])
	case "check":
		err = check(ctx, os.Args[2:])
	case "version":
		fmt.Printf("linkpulse %s\n", version)
		return
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "command %s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, path, err := loadConfig(ctx, *configPath)
	if err != nil {
		return err
	}

	logger := logging.New()
	logger.Printf("monitor starting (target=%s, listen=%s)", cfg.Monitor.PingTarget, cfg.Server.Addr)

	metricsStore := metrics.NewStore()
	publisher := state.NewPublisher()
	httpClient := &http.Client{Timeout: probeHTTPTimeout}

	eng := engine.New(engine.Dependencies{
		Pinger: probe.NewICMPPinger(),
		Throughput: &probe.HTTPThroughputMeter{
			DownloadURL: cfg.Probes.DownloadURL,
			UploadURL:   cfg.Probes.UploadURL,
			Client:      httpClient,
		},
		Resolver: &probe.HTTPAddrResolver{
			URL:    cfg.Probes.IPLookupURL,
			Client: httpClient,
		},
		Publisher: publisher,
		Metrics:   metricsStore,
		Events:    events.NewLogRecorder(logger),
		Logger:    logger,
	})

	checker := health.NewChecker(publisher, metricsStore, health.StaleWindow(cfg.Monitor.PingInterval()))

	persist := func(monitor config.MonitorConfig) error {
		if path == "" {
			return nil
		}
		next := cfg
		next.Monitor = monitor
		return config.Save(path, next)
	}

	srv := server.New(
		server.Config{
			Addr:         cfg.Server.Addr,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
		},
		server.Dependencies{
			Logger:  logger,
			Monitor: eng,
			Checker: checker,
			Metrics: metricsStore,
			Persist: persist,
		},
	)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(runCtx, cfg.Monitor); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	grp, groupCtx := errgroup.WithContext(runCtx)

	grp.Go(func() error {
		logger.Printf("api listening on http://%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	grp.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	grp.Go(func() error {
		<-groupCtx.Done()
		eng.Stop()
		return nil
	})

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		return err
	}

	logger.Printf("monitor stopped")
	return nil
}

func check(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, path, err := loadConfig(ctx, *configPath)
	if err != nil {
		return err
	}

	source := path
	if source == "" {
		source = "built-in defaults"
	}
	fmt.Printf("config ok (%s): target=%s ping=%s history=%d window=%d\n",
		source, cfg.Monitor.PingTarget, cfg.Monitor.PingInterval(),
		cfg.Monitor.HistorySize, cfg.Monitor.LossWindow)
	return nil
}

// loadConfig resolves the config path from the flag, the environment,
// then the default location. A missing file is an error only when the
// path was given explicitly; otherwise defaults apply.
func loadConfig(ctx context.Context, flagPath string) (config.Config, string, error) {
	if flagPath != "" {
		cfg, err := config.Load(ctx, flagPath)
		if err != nil {
			return cfg, flagPath, fmt.Errorf("load config: %w", err)
		}
		return cfg, flagPath, nil
	}

	path := os.Getenv("LINKPULSE_CONFIG")
	explicit := path != ""
	if path == "" {
		path = config.DefaultConfigPath
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return config.Default(), "", nil
		}
		return cfg, path, fmt.Errorf("load config: %w", err)
	}
	return cfg, path, nil
}

func printUsage() {
	fmt.Println("LinkPulse network monitor")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  linkpulse run [--config /etc/linkpulse/config.yaml]")
	fmt.Println("  linkpulse check [--config path]")
	fmt.Println("  linkpulse version")
}
