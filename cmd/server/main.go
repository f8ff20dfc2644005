package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/yourusername/yt-sync-go/api"
	"github.com/yourusername/yt-sync-go/api/handlers"
	"github.com/yourusername/yt-sync-go/internal/app"
	"github.com/yourusername/yt-sync-go/internal/domain"
	"github.com/yourusername/yt-sync-go/internal/infrastructure"
	"github.com/yourusername/yt-sync-go/pkg/logger"
)

const version = "1.0.0"

var (
	configPath = flag.String("config", "", "Path to config file")
	host       = flag.String("host", "", "Listen host (overrides config)")
	port       = flag.Int("port", 0, "Listen port (overrides config)")
	threads    = flag.Int("threads", 0, "Concurrent downloads, 1-10 (persisted to settings)")
	serverMode = flag.Bool("server-mode", false, "Run in the foreground instead of detaching")
	initConfig = flag.String("init-config", "", "Write the effective configuration to this path and exit")
)

func main() {
	flag.Parse()

	if *initConfig != "" {
		if err := writeConfig(*initConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", *initConfig)
		return
	}

	if !*serverMode {
		startAsDaemon()
		return
	}

	if err := runServer(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

// startAsDaemon re-executes the binary detached with -server-mode
func startAsDaemon() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	args := append([]string{"-server-mode"}, os.Args[1:]...)
	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	setSysProcAttr(cmd)

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", os.DevNull, err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
}

func runServer() error {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(config)

	logsDir := config.Storage.LogDir()
	if err := createDirectories(config); err != nil {
		return err
	}

	general, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
		Service:    "yt-sync",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: logsDir,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize category logs: %w", err)
	}
	defer multiLog.Close()

	logAdapter := logger.NewLoggerAdapter(general, multiLog)
	defer logAdapter.Sync()
	log := logAdapter.General()

	log.Info("Starting yt-sync server",
		zap.String("version", version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("data_dir", config.Storage.DataDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := infrastructure.NewMetrics()

	fetcher := infrastructure.NewYTDLPPlaylistFetcher(&config.Tools, log)
	store := infrastructure.NewJSONCatalogStore(config.Storage.CatalogPath())
	catalog, err := app.NewCatalog(store, fetcher, domain.Settings{
		DownloadDir: config.Storage.MediaDir(),
		ThreadCount: config.Queue.ThreadCount,
	}, logAdapter)
	if err != nil {
		return err
	}
	catalog.OnSave(metrics.CatalogSaved)

	if *threads > 0 {
		n := *threads
		if _, err := catalog.UpdateSettings(domain.SettingsPatch{ThreadCount: &n}); err != nil {
			log.Warn("Failed to persist thread count", zap.Error(err))
		}
	}

	if reset, err := catalog.Reconcile(); err != nil {
		log.Warn("Catalog reconciliation failed", zap.Error(err))
	} else if reset > 0 {
		log.Info("Reset videos with missing files", zap.Int("count", reset))
	}

	acquirer := infrastructure.NewYTDLPAcquirer(&config.Tools, logsDir, multiLog)
	if !acquirer.Available() {
		log.Warn("yt-dlp not found; downloads will fail until it is installed",
			zap.String("binary", config.Tools.YTDLPBinary))
	}

	bus := app.NewJobEventBus(256, logAdapter)

	jobs := app.NewJobManager(catalog, acquirer, app.JobManagerOptions{
		Events:       bus,
		Observer:     metrics,
		Logger:       logAdapter,
		LogTailLines: config.Queue.LogTailLines,
	})

	hub := handlers.NewJobHub(jobs, log)
	bus.Subscribe(metrics)
	bus.Subscribe(hub)
	bus.Subscribe(infrastructure.NewNotificationService(&config.Notification, log))

	cleanups := wireEventSinks(ctx, config, bus, log)
	defer func() {
		// Drain pending events before the sinks go away.
		bus.Close()
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	thumbs := infrastructure.NewThumbnailCache(config.Storage.ThumbDir(), &config.Thumbnails, log)
	defer thumbs.Close()

	if err := jobs.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job manager: %w", err)
	}

	router := api.SetupRouter(api.Dependencies{
		Catalog:    catalog,
		Jobs:       jobs,
		Streams:    app.NewStreamEngine(catalog, logAdapter),
		Thumbnails: thumbs,
		Tools:      acquirer,
		Hub:        hub,
		Streamed:   metrics,
		Metrics:    metrics.Handler(),
		Logger:     logAdapter,
		LogsDir:    logsDir,
		Version:    version,
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case runErr = <-serverErr:
		log.Error("HTTP server failed", zap.Error(runErr))
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.Queue.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := jobs.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping job manager", zap.Error(err))
	}

	log.Info("Server exited")
	return runErr
}

// wireEventSinks connects the optional external event publishers and the
// media archive. Failures are logged and the sink is skipped.
func wireEventSinks(ctx context.Context, config *domain.Config, bus *app.JobEventBus, log *zap.Logger) []func() {
	var cleanups []func()

	if config.Events.NATS.Enabled {
		pub, cleanup, err := infrastructure.ConnectNATS(ctx, &config.Events.NATS, log)
		if err != nil {
			log.Error("NATS publisher disabled", zap.Error(err))
		} else {
			bus.Subscribe(pub)
			cleanups = append(cleanups, cleanup)
		}
	}

	if config.Events.Redis.Enabled {
		pub, cleanup, err := infrastructure.ConnectRedis(ctx, &config.Events.Redis, log)
		if err != nil {
			log.Error("Redis publisher disabled", zap.Error(err))
		} else {
			bus.Subscribe(pub)
			cleanups = append(cleanups, cleanup)
		}
	}

	if config.Archive.Enabled {
		archiver, err := infrastructure.NewS3ArchiverFromConfig(ctx, &config.Archive, log)
		if err != nil {
			log.Error("S3 archive disabled", zap.Error(err))
		} else {
			bus.Subscribe(archiver)
			cleanups = append(cleanups, archiver.Close)
		}
	}

	return cleanups
}

// writeConfig saves the loaded configuration, flags applied, as YAML
func writeConfig(path string) error {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(config)
	return app.SaveConfig(config, path)
}

func applyFlags(config *domain.Config) {
	if *host != "" {
		config.Server.Host = *host
	}
	if *port > 0 {
		config.Server.Port = *port
	}
	if *threads > 0 {
		config.Queue.ThreadCount = domain.ClampThreadCount(*threads)
	}
}

func createDirectories(config *domain.Config) error {
	dirs := []string{
		config.Storage.DataDir,
		config.Storage.MediaDir(),
		config.Storage.ThumbDir(),
		config.Storage.LogDir(),
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
