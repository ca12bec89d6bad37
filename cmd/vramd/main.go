package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"vramd/internal/catalog"
	"vramd/internal/config"
	"vramd/internal/events"
	"vramd/internal/httpapi"
	"vramd/internal/lifecycle"
	"vramd/internal/provider"
	"vramd/internal/queue"
	"vramd/internal/telemetry"
)

func main() {
	var (
		configPath string
		logLevel   string
		flagCfg    config.Config
	)

	root := &cobra.Command{
		Use:           "vramd",
		Short:         "GPU VRAM orchestrator for model-serving backends",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				fileCfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = config.Merge(cfg, fileCfg)
			}
			cfg = config.ApplyEnv(cfg)
			cfg = config.Merge(cfg, flagCfg)
			return run(cfg, logLevel)
		},
	}

	root.Flags().StringVar(&configPath, "config", "", "Path to config file (yaml/json/toml)")
	root.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	root.Flags().StringVar(&flagCfg.Addr, "addr", "", "HTTP listen address, e.g. :8080")
	root.Flags().StringVar(&flagCfg.CatalogPath, "catalog", "", "Path to the model catalog YAML")
	root.Flags().StringVar(&flagCfg.BusEndpoint, "bus-endpoint", "", "ZMQ mesh bus endpoint, e.g. tcp://bus:5557")
	root.Flags().IntVar(&flagCfg.MaxModels, "max-models", 0, "Soft cap on concurrently loaded models (0=unlimited)")
	root.Flags().IntVar(&flagCfg.SafetyMarginMB, "vram-safety-margin-mb", 0, "Reserved VRAM margin in MB to keep free")
	root.Flags().IntVar(&flagCfg.IdleTimeoutMin, "idle-timeout-minutes", 0, "Idle minutes before a model is swept")
	root.Flags().IntVar(&flagCfg.PollIntervalSec, "poll-interval-seconds", 0, "Telemetry poll interval in seconds")
	root.Flags().StringToStringVar(&flagCfg.Providers, "provider", nil, "Provider base URLs, e.g. llm-runner=http://runner:9090")

	if err := root.Execute(); err != nil {
		os.Stderr.WriteString("vramd: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(cfg config.Config, logLevel string) error {
	lvl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()

	// Unreadable catalog is the only fatal startup condition.
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	log.Info().Str("path", cfg.CatalogPath).Int("entries", cat.Len()).Msg("catalog loaded")

	providers := make(map[string]provider.Provider, len(cfg.Providers))
	for name, baseURL := range cfg.Providers {
		providers[name] = provider.NewHTTPClient(name, baseURL, provider.HTTPConfig{
			Retries: cfg.ProviderRetries,
		}, log)
		log.Info().Str("provider", name).Str("url", baseURL).Msg("provider registered")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.BusEndpoint != "" {
		pub, err := events.NewZMQPublisher(cfg.BusEndpoint, 3, log)
		if err != nil {
			log.Warn().Err(err).Str("endpoint", cfg.BusEndpoint).Msg("mesh bus unavailable, events disabled")
		} else {
			publisher = pub
			defer pub.Close()
		}
	}

	var src telemetry.Source
	if nvSrc, err := telemetry.NewNVMLSource(0); err != nil {
		log.Warn().Err(err).Msg("telemetry unavailable, admissions will be refused until it recovers")
		src = telemetry.UnavailableSource{Err: err}
	} else {
		src = nvSrc
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	httpapi.SetBaseContext(ctx)

	tracker := telemetry.New(src, telemetry.TrackerConfig{
		PollInterval:      cfg.PollInterval(),
		AlertThresholdPct: cfg.AlertThresholdPct,
	}, publisher, log)
	go tracker.Run(ctx)

	mgr := lifecycle.New(lifecycle.Config{
		SafetyMarginMB:    cfg.SafetyMarginMB,
		DefaultEstimateMB: cfg.DefaultEstimateMB,
		MaxModels:         cfg.MaxModels,
		IdleTimeout:       cfg.IdleTimeout(),
	}, cat, tracker, providers, publisher, log)
	go mgr.RunSweeper(ctx)

	q := queue.New(mgr, cfg.MaxQueueDepth, log)
	go q.Run(ctx)

	mux := httpapi.NewMux(httpapi.Deps{Loader: q, Lifecycle: mgr, Telemetry: tracker})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("vramd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown (Ctrl+C / SIGTERM)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
