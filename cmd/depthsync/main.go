package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/depthsync/internal/admission"
	"github.com/banshee-data/depthsync/internal/api"
	"github.com/banshee-data/depthsync/internal/bus"
	"github.com/banshee-data/depthsync/internal/capture"
	"github.com/banshee-data/depthsync/internal/clocksync"
	"github.com/banshee-data/depthsync/internal/config"
	"github.com/banshee-data/depthsync/internal/db"
	"github.com/banshee-data/depthsync/internal/dispatch"
	"github.com/banshee-data/depthsync/internal/monitor"
	"github.com/banshee-data/depthsync/internal/monitoring"
	"github.com/banshee-data/depthsync/internal/timeutil"
	"github.com/banshee-data/depthsync/internal/version"
)

var (
	configFile    = flag.String("config", "", "Driver config JSON (defaults built in when empty)")
	listen        = flag.String("listen", ":8090", "Listen address")
	dbPath        = flag.String("db", "depthsync.db", "Session database path (empty disables recording)")
	sourceName    = flag.String("source", "sim", "Capture source: sim or serial")
	port          = flag.String("port", "/dev/ttyACM0", "Capture bridge serial port (serial source only)")
	baud          = flag.Int("baud", capture.DefaultBaudRate, "Capture bridge baud rate (serial source only)")
	plotDir       = flag.String("plot-dir", "plots", "Directory for the drift plot written on shutdown (empty disables)")
	simDriftPPM   = flag.Float64("sim-drift-ppm", 40, "Simulated device oscillator error in ppm (sim source only)")
	statsInterval = flag.Duration("stats-interval", db.DefaultSnapshotInterval, "How often stream counters are recorded")
	busBuffer     = flag.Int("bus-buffer", bus.DefaultBuffer, "Per-subscriber publication queue length")
	traceLog      = flag.Bool("trace", false, "Enable the per-sample trace log")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

// source is what both capture backends offer the main loop.
type source interface {
	Run(ctx context.Context, h capture.Handler) error
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if err := validateFlags(); err != nil {
		log.Fatal(err)
	}
	if *traceLog {
		monitoring.SetLogWriters(monitoring.LogWriters{Ops: os.Stderr, Diag: os.Stderr, Trace: os.Stderr})
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	monitoring.Opsf("%s starting, source=%s", version.String(), *sourceName)

	clock := timeutil.RealClock{}
	host := timeutil.NewMonotonic(clock)
	series := monitor.NewClockSeries(0)
	intervals := monitor.NewIntervalStats(0)

	var store *db.DB
	var recorder *db.Recorder
	if *dbPath != "" {
		store, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()
	}

	// recorder is assigned below, before capture starts, so no event can
	// observe it unset.
	tcfg := cfg.TranslatorConfig()
	tcfg.OnEvent = func(ev clocksync.Event) {
		series.OnClockEvent(ev)
		if recorder != nil {
			recorder.OnClockEvent(ev)
		}
		monitoring.Diagf("clock %s: device=%dns host=%dns offset_error=%dns", ev.Kind, ev.DeviceNanos, ev.HostNanos, ev.OffsetErrorNanos)
	}
	translator, err := clocksync.NewTranslator(host, tcfg)
	if err != nil {
		log.Fatalf("failed to create translator: %v", err)
	}

	synchronizer := admission.NewSynchronizer(cfg.AdmissionConfig())
	publications := bus.New(*busBuffer)
	dispatcher := dispatch.New(translator, synchronizer, publications, dispatch.ConfigFromDriver(cfg))

	var session *db.Session
	if store != nil {
		session, err = store.StartSession(clock.Now(), *sourceName, version.Version, cfg)
		if err != nil {
			log.Fatalf("failed to start session: %v", err)
		}
		recorder = db.NewRecorder(store, session, db.RecorderOptions{
			Snapshot: streamSnapshots(dispatcher, host),
			Interval: *statsInterval,
			Clock:    clock,
		})
		monitoring.Opsf("recording session %s to %s", session.ID, store.Path())
	}

	mux := http.NewServeMux()
	publications.AttachAdminRoutes(mux)
	series.AttachAdminRoutes(mux)
	if store != nil {
		if err := store.AttachAdminRoutes(mux); err != nil {
			log.Fatalf("failed to attach db admin routes: %v", err)
		}
	}

	src, closeSource, err := openSource(cfg, clock, mux)
	if err != nil {
		log.Fatalf("failed to open capture source: %v", err)
	}
	defer closeSource()

	apiServer := &api.Server{
		Dispatcher:   dispatcher,
		Synchronizer: synchronizer,
		Translator:   translator,
		Config:       cfg,
		Bus:          publications,
		DB:           store,
		Session:      session,
		Intervals:    intervals,
		Clock:        series,
	}
	mux.Handle("/api/", apiServer.ServeMux())

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Capture runs on its own context so that it is stopped, and no
	// callback is in flight, before the bus is closed.
	captureCtx, stopCapture := context.WithCancel(ctx)
	defer stopCapture()
	captureDone := make(chan struct{})
	go func() {
		defer close(captureDone)
		if err := src.Run(captureCtx, dispatcher); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Opsf("capture source stopped: %v", err)
			stop()
		}
		log.Print("capture routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		intervals.Run(ctx, publications)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		series.Run(ctx, clock, 100*time.Millisecond, translator.Status)
	}()

	// The recorder outlives capture so its final snapshot and the session
	// end stamp cover every sample.
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	defer stopRecorder()
	if recorder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := recorder.Run(recorderCtx); err != nil {
				monitoring.Opsf("recorder stopped: %v", err)
			}
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	<-ctx.Done()
	stopCapture()
	<-captureDone
	stopRecorder()
	if err := publications.Close(); err != nil {
		log.Printf("failed to close bus: %v", err)
	}
	wg.Wait()

	if *plotDir != "" {
		path := monitor.PlotPath(*plotDir, *sourceName, clock.Now())
		if err := series.SavePlot(path); err != nil {
			monitoring.Opsf("no drift plot written: %v", err)
		} else {
			monitoring.Opsf("drift plot written to %s", path)
		}
	}
	st := dispatcher.Stats()
	monitoring.Opsf("shutdown complete: panics=%d pointclouds=%d unclassified=%d", st.Panics, st.Pointclouds, st.Unclassified)
}

func validateFlags() error {
	if *listen == "" {
		return errors.New("listen address is required")
	}
	switch *sourceName {
	case "sim":
	case "serial":
		if *port == "" {
			return errors.New("serial port is required for -source=serial")
		}
	default:
		return fmt.Errorf("unknown source %q: want sim or serial", *sourceName)
	}
	if *statsInterval <= 0 {
		return fmt.Errorf("stats interval must be positive, got %v", *statsInterval)
	}
	return nil
}

func loadConfig(path string) (*config.DriverConfig, error) {
	if path == "" {
		return config.DefaultDriverConfig(), nil
	}
	return config.LoadDriverConfig(path)
}

// openSource builds the configured capture backend and registers its debug
// routes.
func openSource(cfg *config.DriverConfig, clock timeutil.Clock, mux *http.ServeMux) (source, func(), error) {
	if *sourceName == "serial" {
		ls, err := capture.NewSerialSource(*port, capture.PortOptions{BaudRate: *baud})
		if err != nil {
			return nil, nil, err
		}
		if err := ls.Initialize(cfg); err != nil {
			ls.Close()
			return nil, nil, fmt.Errorf("failed to initialize device: %w", err)
		}
		ls.AttachAdminRoutes(mux)
		return ls, func() { ls.Close() }, nil
	}

	sc := capture.NewSimulatorConfig(cfg, clock)
	sc.DriftPPM = *simDriftPPM
	sim, err := capture.NewSimulator(sc)
	if err != nil {
		return nil, nil, err
	}
	return sim, func() {}, nil
}
