package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cogentcore.org/core/math32"
	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/spatialplot/globeviz/internal/api"
	"github.com/spatialplot/globeviz/internal/config"
	"github.com/spatialplot/globeviz/internal/dataset"
	"github.com/spatialplot/globeviz/internal/dispatcher"
	"github.com/spatialplot/globeviz/internal/extremum"
	"github.com/spatialplot/globeviz/internal/logging"
	"github.com/spatialplot/globeviz/internal/model"
	"github.com/spatialplot/globeviz/internal/monitor"
	"github.com/spatialplot/globeviz/internal/render"
	"github.com/spatialplot/globeviz/internal/session"
	"github.com/spatialplot/globeviz/internal/store"
	"github.com/spatialplot/globeviz/internal/stream"
	"github.com/spatialplot/globeviz/internal/telemetry"
	"github.com/spatialplot/globeviz/internal/worker"
	"github.com/spatialplot/globeviz/pkg/markerops"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"

	AppName string = "globeviz"
)

// global variables
var (
	SessionStartTime time.Time = time.Now()

	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// DBLogger is the zerolog logger used by the database manager and
	// the telemetry sink
	DBLogger zerolog.Logger

	LogFile *os.File
)

const (
	previewWidth  = 1024
	previewHeight = 512
)

// setupLogging loads the config and brings up console, file, and optional
// Graylog output. Called before anything else so later failures land in
// the session log.
func setupLogging(configDir string) error {
	// Bootstrap logger: console only, until the config tells us where
	// the log file lives.
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.MkdirAll(logsDir, 0755)
	}

	logFilePath := logging.LogFilePath(logsDir, AppName, SessionStartTime)
	if _, err := os.Stat(logFilePath); err == nil {
		os.Rename(logFilePath, logFilePath+".old")
	}

	var err error
	LogFile, err = os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to create/open log file %s: %w", logFilePath, err)
	}

	var graylog *gelf.Writer
	if viper.GetBool("graylog.enabled") {
		graylog, err = gelf.NewWriter(viper.GetString("graylog.address"))
		if err != nil {
			Logger.Error("Failed to connect Graylog writer", "error", err,
				"address", viper.GetString("graylog.address"))
			graylog = nil
		}
	}

	if graylog != nil {
		SlogManager.Setup(LogFile, viper.GetString("logLevel"), graylog)
	} else {
		SlogManager.Setup(LogFile, viper.GetString("logLevel"), nil)
	}
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", logFilePath)

	// zerolog for the database manager and telemetry, console + file
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}
	mlw := zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		},
		zerolog.ConsoleWriter{
			Out:        LogFile,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		},
	)
	DBLogger = zerolog.New(mlw).With().Timestamp().Logger()

	return nil
}

// sphereRefFromConfig builds the reference globe from the globe.* keys.
func sphereRefFromConfig() *model.SphereRef {
	scale := math32.Vec3(1, 1, 1)
	switch raw := viper.Get("globe.scale").(type) {
	case []float64:
		if len(raw) == 3 {
			scale = math32.Vec3(float32(raw[0]), float32(raw[1]), float32(raw[2]))
		}
	case []any:
		if len(raw) == 3 {
			ok := true
			var vals [3]float32
			for i, v := range raw {
				f, isFloat := v.(float64)
				if !isFloat {
					ok = false
					break
				}
				vals[i] = float32(f)
			}
			if ok {
				scale = math32.Vec3(vals[0], vals[1], vals[2])
			}
		}
	}

	return &model.SphereRef{
		Radius: float32(viper.GetFloat64("globe.radius")),
		Scale:  scale,
	}
}

// defaultSelection reads the startup metric/year from config.
func defaultSelection() model.Selection {
	return model.Selection{
		Metric: model.Metric(viper.GetString("defaults.metric")),
		Year:   viper.GetInt("defaults.year"),
	}
}

// ensureImported loads the CSV dataset into the store if it isn't there
// yet. force reimports even when rows already exist.
func ensureImported(backend store.Backend, force bool) error {
	importer := dataset.NewImporter(backend, Logger)

	if !force {
		imported, err := importer.Imported()
		if err != nil {
			return fmt.Errorf("checking dataset presence: %w", err)
		}
		if imported {
			Logger.Info("Dataset already imported, skipping")
			return nil
		}
	}

	datasetCfg := config.GetDatasetConfig()
	Logger.Info("Importing dataset",
		"energy", datasetCfg.EnergyCSV,
		"centroids", datasetCfg.CentroidsCSV)

	start := time.Now()
	if err := importer.ImportFiles(datasetCfg.EnergyCSV, datasetCfg.CentroidsCSV); err != nil {
		return err
	}
	Logger.Info("Dataset import complete", "duration", time.Since(start))
	return nil
}

// renderPreviewFile writes a one-shot flat-map frame of the default
// selection to outPath.
func renderPreviewFile(backend store.Backend, outPath string) error {
	provider := dataset.NewProvider(backend)
	extremumCache := extremum.NewCache(provider, Logger)

	preview := render.NewPreview(previewWidth, previewHeight, Logger)
	datasetCfg := config.GetDatasetConfig()
	if datasetCfg.Outlines != "" {
		raw, err := os.ReadFile(datasetCfg.Outlines)
		if err != nil {
			Logger.Warn("Failed to read outline file, rendering without basemap",
				"error", err, "path", datasetCfg.Outlines)
		} else if err := preview.SetOutline(raw); err != nil {
			Logger.Warn("Failed to parse outline file", "error", err)
		}
	}

	sel := defaultSelection()
	samples, err := provider.SamplesForYear(sel.Metric, sel.Year)
	if err != nil {
		return fmt.Errorf("loading samples for preview: %w", err)
	}

	if dir := filepath.Dir(outPath); dir != "." {
		os.MkdirAll(dir, 0755)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating preview file: %w", err)
	}
	defer f.Close()

	if err := preview.WritePNG(f, samples, extremumCache.Max(sel.Metric), sel.Country); err != nil {
		return fmt.Errorf("rendering preview: %w", err)
	}

	Logger.Info("Preview written", "path", outPath,
		"metric", sel.Metric, "year", sel.Year, "samples", len(samples))
	return nil
}

// serve wires the session pipeline and runs the HTTP API until SIGINT or
// SIGTERM.
func serve(backend store.Backend) error {
	provider := dataset.NewProvider(backend)
	extremumCache := extremum.NewCache(provider, Logger)

	// Dispatcher carrying pass results to the sinks
	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(DBLogger))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	// Session service owns the marker map
	sessionCtx := session.NewContext(defaultSelection())
	sessionCtx.SetSphereRef(sphereRefFromConfig())
	sessionService := session.NewService(session.Dependencies{
		Provider:   provider,
		Extremum:   extremumCache,
		Dispatcher: eventDispatcher,
		Logger:     Logger,
	}, sessionCtx)

	// Pass-result sinks
	executor := render.NewExecutor(render.NewSceneLog(Logger), Logger)

	broadcaster := stream.NewBroadcaster(Logger)
	broadcaster.Hello = func() (markerops.Envelope, bool) {
		sel, markers, globalMax := sessionService.Scene()
		if len(markers) == 0 {
			return markerops.Envelope{}, false
		}
		env, err := stream.SceneEnvelope(sel, markers, globalMax)
		if err != nil {
			Logger.Error("Failed to build catch-up snapshot", "error", err)
			return markerops.Envelope{}, false
		}
		return env, true
	}

	var pushClient *stream.PushClient
	if viper.GetBool("push.enabled") {
		pushClient = stream.NewPushClient(stream.PushConfig{
			URL:         viper.GetString("push.url"),
			Secret:      viper.GetString("push.secret"),
			OutboxLimit: 256,
		}, Logger)
		if err := pushClient.Connect(); err != nil {
			Logger.Warn("Push collector unreachable, batches will queue", "error", err)
		}
	}

	var telemetrySink *telemetry.Manager
	if viper.GetBool("influx.enabled") {
		backupPath := filepath.Join(
			viper.GetString("telemetry.backupDir"),
			fmt.Sprintf("%s_%s.lp.gz", AppName, SessionStartTime.Format("20060102_150405")),
		)
		os.MkdirAll(viper.GetString("telemetry.backupDir"), 0755)
		telemetrySink = telemetry.NewManager(DBLogger, backupPath)
		if err := telemetrySink.Connect(); err != nil {
			Logger.Warn("Telemetry sink failed to connect", "error", err)
			telemetrySink = nil
		}
	}

	var snapshots *render.SnapshotWriter
	if viper.GetBool("snapshot.enabled") {
		snapshots, err = render.NewSnapshotWriter(viper.GetString("snapshot.dir"), Logger)
		if err != nil {
			Logger.Warn("Failed to set up snapshot writer", "error", err)
			snapshots = nil
		}
	}

	workerManager := worker.NewManager(worker.Dependencies{
		Executor:    executor,
		Broadcaster: broadcaster,
		Push:        pushClient,
		Telemetry:   telemetrySink,
		Snapshots:   snapshots,
		Scene:       sessionService,
		Logger:      Logger,
	})
	workerManager.RegisterHandlers(eventDispatcher)
	Logger.Info("Pass-result handlers registered with dispatcher")

	// Stamp every log record with the live selection and marker count
	SlogManager.ContextAttrs = func() []slog.Attr {
		cur := sessionCtx.Selection()
		return []slog.Attr{
			slog.String("metric", string(cur.Metric)),
			slog.Int("year", cur.Year),
			slog.Int("markers", sessionService.MarkerCount()),
		}
	}

	// Seed the scene with the default selection so clients connecting
	// before the first PUT see markers.
	sel := sessionCtx.Selection()
	if err := sessionService.Validate(sel); err != nil {
		Logger.Warn("Default selection invalid, starting with empty scene",
			"metric", sel.Metric, "year", sel.Year, "error", err)
	} else {
		res, err := sessionService.Apply(sel)
		if err != nil {
			Logger.Error("Initial pass failed", "error", err)
		} else {
			Logger.Info("Initial pass complete",
				"metric", sel.Metric, "year", sel.Year,
				"creates", res.Stats.Creates, "skipped", res.Stats.Skipped)
		}
	}

	// Runtime status monitor
	monitorService := monitor.NewService(monitor.Dependencies{
		Logger:      Logger,
		Interval:    time.Duration(config.GetInt("monitor.intervalSeconds")) * time.Second,
		QueueDepth:  eventDispatcher.QueueDepth,
		MarkerCount: sessionService.MarkerCount,
		ClientCount: broadcaster.ClientCount,
	})
	if !monitorService.IsRunning() {
		monitorService.Start()
	}

	// HTTP API
	datasetCfg := config.GetDatasetConfig()
	apiPreview := render.NewPreview(previewWidth, previewHeight, Logger)
	if datasetCfg.Outlines != "" {
		if raw, err := os.ReadFile(datasetCfg.Outlines); err == nil {
			if err := apiPreview.SetOutline(raw); err != nil {
				Logger.Warn("Failed to parse outline file", "error", err)
			}
		}
	}

	server := api.NewServer(api.Dependencies{
		Session:     sessionService,
		Provider:    provider,
		Extremum:    extremumCache,
		Preview:     apiPreview,
		Broadcaster: broadcaster,
		Logger:      Logger,
	})

	listen := viper.GetString("http.listen")
	httpServer := &http.Server{
		Addr:    listen,
		Handler: server.Engine(),
	}

	serveErr := make(chan error, 1)
	go func() {
		Logger.Info("HTTP API listening", "addr", listen, "version", Version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		Logger.Info("Shutting down", "signal", sig.String())
	case err := <-serveErr:
		Logger.Error("HTTP server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		Logger.Error("HTTP shutdown failed", "error", err)
	}

	broadcaster.Close()
	if pushClient != nil {
		if err := pushClient.Close(); err != nil {
			Logger.Error("Push client close failed", "error", err)
		}
	}
	if telemetrySink != nil {
		telemetrySink.Close()
	}
	monitorService.Stop()

	return nil
}

func main() {
	configDir := flag.String("config", ".", "directory containing globeviz.cfg.json")
	importOnly := flag.Bool("import", false, "import the CSV dataset into the store and exit")
	previewOut := flag.String("preview", "", "render one flat-map frame to the given PNG path and exit")
	runServe := flag.Bool("serve", true, "run the HTTP API and session service until interrupted")
	flag.Parse()

	if err := setupLogging(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "logging setup failed: %v\n", err)
		os.Exit(1)
	}
	defer LogFile.Close()
	Logger.Info("Starting up...", "version", Version, "build", BuildDate)

	backend, err := store.NewBackend(config.GetStorageConfig(), store.Dependencies{
		Logger:   Logger,
		DBLogger: DBLogger,
	})
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		os.Exit(1)
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		os.Exit(1)
	}
	defer backend.Close()
	Logger.Info("Storage backend ready", "type", config.GetStorageConfig().Type)

	if *importOnly {
		if err := ensureImported(backend, true); err != nil {
			Logger.Error("Dataset import failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := ensureImported(backend, false); err != nil {
		Logger.Error("Dataset import failed", "error", err)
		os.Exit(1)
	}

	if *previewOut != "" {
		if err := renderPreviewFile(backend, *previewOut); err != nil {
			Logger.Error("Preview render failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if !*runServe {
		return
	}
	if err := serve(backend); err != nil {
		Logger.Error("Serve failed", "error", err)
		os.Exit(1)
	}
}
