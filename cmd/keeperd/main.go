// Command keeperd hosts an authoritative session: it loads a level, advances
// turns, records seat history and streams frames to keeper-mirror clients.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/opendungeons/keeper/internal/config"
	"github.com/opendungeons/keeper/internal/dispatcher"
	"github.com/opendungeons/keeper/internal/influx"
	"github.com/opendungeons/keeper/internal/level"
	"github.com/opendungeons/keeper/internal/logging"
	"github.com/opendungeons/keeper/internal/monitor"
	"github.com/opendungeons/keeper/internal/netsync"
	intOtel "github.com/opendungeons/keeper/internal/otel"
	"github.com/opendungeons/keeper/internal/ruleset"
	"github.com/opendungeons/keeper/internal/session"
	"github.com/opendungeons/keeper/internal/storage"
	"github.com/opendungeons/keeper/internal/worker"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"

	ServiceName = "keeperd"
)

func main() {
	flags := pflag.NewFlagSet(ServiceName, pflag.ExitOnError)
	configDir := flags.StringP("config", "c", ".", "directory holding "+config.FileName)
	flags.StringP("level", "l", "", "level file to host (overrides levelFile)")
	flags.String("storage", "", "storage backend: memory, sqlite or postgres (overrides storage.type)")
	income := flags.Int("income", 0, "gold every seat earns per turn when no game mechanics are attached")
	showVersion := flags.Bool("version", false, "print the version and exit")
	_ = flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("%s %s (%s)\n", ServiceName, Version, BuildDate)
		return
	}

	_ = viper.BindPFlag("levelFile", flags.Lookup("level"))
	_ = viper.BindPFlag("storage.type", flags.Lookup("storage"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configDir, *income); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", ServiceName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configDir string, income int) error {
	startedAt := time.Now()
	configErr := config.Load(configDir)
	logLevel := config.GetString("logLevel")

	logFile, logPath, err := logging.OpenLogFile(config.GetString("logsDir"), ServiceName, startedAt)
	if err != nil {
		return err
	}
	defer logFile.Close()

	otelCfg := config.GetOTelConfig()
	provider, err := intOtel.New(intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		ServiceVersion: Version,
		BatchTimeout:   otelCfg.BatchTimeout,
		LogWriter:      logFile,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize OTel provider: %w", err)
	}

	var graylog logging.GelfWriter
	var graylogErr error
	if gc := config.GetGraylogConfig(); gc.Enabled {
		w, err := gelf.NewWriter(gc.Address)
		if err != nil {
			graylogErr = err
		} else {
			defer w.Close()
			graylog = w
		}
	}

	var current atomic.Pointer[host]
	var sessionName string
	slogManager := logging.NewSlogManager()
	slogManager.Setup(logging.Options{
		Level:    logLevel,
		File:     io.MultiWriter(os.Stdout, logFile),
		Provider: provider.LoggerProvider(),
		Graylog:  graylog,
		Service:  ServiceName,
		Context: func() []slog.Attr {
			h := current.Load()
			if h == nil {
				return nil
			}
			return []slog.Attr{slog.String("session", sessionName), slog.Int64("turn", h.Turn())}
		},
	})
	logger := slogManager.Logger()
	logger.Info("Starting", "version", Version, "buildDate", BuildDate, "logFile", logPath)
	if configErr != nil {
		logger.Warn("Failed to load config, using defaults", "error", configErr)
	}
	if graylogErr != nil {
		logger.Error("Failed to connect to Graylog", "error", graylogErr)
	}

	rules, err := loadRuleset(config.GetString("rulesetFile"))
	if err != nil {
		return fmt.Errorf("failed to load ruleset: %w", err)
	}
	lvl, err := level.NewLoader(logger).LoadFile(config.GetString("levelFile"))
	if err != nil {
		return fmt.Errorf("failed to load level: %w", err)
	}
	sess, err := session.New(session.Dependencies{Logger: logger, Ruleset: rules}, lvl.Seats)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	sessionName = sessionNameFor(lvl, config.GetString("levelFile"), startedAt)
	logger.Info("Level loaded", "level", lvl.Name, "seats", sess.Len(), "goals", len(lvl.Goals), "ruleset", rules.Name)

	storageCfg := config.GetStorageConfig()
	backend, err := createStorageBackend(storageCfg, config.GetDBConfig(), lvl, logger, logging.NewZerolog(logFile, logLevel, "database"))
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	if err := backend.StartSession(storage.SessionInfo{
		Name:      sessionName,
		LevelName: lvl.Name,
		Ruleset:   rules.Name,
		StartedAt: startedAt,
		Seats:     sess.Snapshots(),
	}); err != nil {
		backend.Close()
		return fmt.Errorf("failed to start storage session: %w", err)
	}

	sessionCfg := config.GetSessionConfig()
	var metrics *influx.Manager
	if ic := config.GetInfluxConfig(); ic.Enabled {
		backupPath := filepath.Join(sessionCfg.SaveDir, sessionName+".influx.lp.gz")
		metrics = influx.NewManager(ic, logging.NewZerolog(logFile, logLevel, "influx"), backupPath)
		if err := metrics.Connect(ctx); err != nil {
			logger.Error("Failed to initialize InfluxDB, metrics disabled", "error", err)
			metrics = nil
		}
	}

	events, err := dispatcher.New(logging.NewDispatcherLogger(logging.NewZerolog(logFile, logLevel, "dispatcher")))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	workerDeps := worker.Dependencies{Logger: logger, SessionName: sessionName}
	if metrics != nil {
		workerDeps.Metrics = metrics
	}
	workers := worker.NewManager(workerDeps, backend)
	workers.RegisterHandlers(events)

	netCfg := config.GetNetConfig()
	syncServer, err := netsync.NewServer(netsync.ServerConfig{Compress: netCfg.Compress, SendQueue: netCfg.SendQueue}, logger)
	if err != nil {
		return fmt.Errorf("failed to create sync server: %w", err)
	}
	ln, err := net.Listen("tcp", netCfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", netCfg.Listen, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/sync", syncServer.Handler())
	httpServer := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Sync server stopped", "error", err)
		}
	}()
	logger.Info("Serving mirrors", "addr", ln.Addr().String(), "compress", netCfg.Compress)

	var sim session.Simulation = session.IdleSimulation{}
	if income > 0 {
		sim = incomeSimulation{gold: income}
	}
	h := newHost(logger, sess, events, syncServer, sim)
	current.Store(h)

	statusCfg := config.GetStatusConfig()
	statusMonitor := monitor.NewService(monitor.Dependencies{
		Logger:        logger,
		Session:       sessionName,
		Turn:          h.Turn,
		PendingWrites: workers.PendingWrites,
		Mirrors:       syncServer.Clients,
		StatusFile:    statusCfg.File,
		Interval:      statusCfg.Interval,
	})
	if err := statusMonitor.Start(); err != nil {
		logger.Warn("Failed to start status monitor", "error", err)
	}

	if sessionCfg.TurnInterval > 0 {
		h.run(ctx, sessionCfg.TurnInterval)
	} else {
		logger.Error("session.turnInterval must be positive", "turnInterval", sessionCfg.TurnInterval)
		<-ctx.Done()
	}

	logger.Info("Shutting down", "turn", h.Turn())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := syncServer.Close(); err != nil {
		logger.Warn("Failed to close mirror connections", "error", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Failed to stop sync server", "error", err)
	}
	events.Close()
	statusMonitor.Stop()

	if path, err := saveLevel(sessionCfg.SaveDir, sessionName, lvl); err != nil {
		logger.Error("Failed to save level", "error", err)
	} else {
		logger.Info("Level saved", "path", path)
	}

	if err := backend.EndSession(); err != nil {
		logger.Error("Failed to end storage session", "error", err)
	} else if exp, ok := backend.(storage.Exportable); ok && exp.ExportedFilePath() != "" {
		logger.Info("Session exported", "path", exp.ExportedFilePath())
	}
	if err := backend.Close(); err != nil {
		logger.Error("Failed to close storage backend", "error", err)
	}
	if metrics != nil {
		if err := metrics.Close(); err != nil {
			logger.Error("Failed to close InfluxDB manager", "error", err)
		}
	}

	if err := slogManager.Flush(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: flushing logs: %v\n", ServiceName, err)
	}
	return provider.Shutdown(shutdownCtx)
}

func loadRuleset(path string) (*ruleset.Ruleset, error) {
	if path == "" {
		return ruleset.Default(), nil
	}
	return ruleset.Load(path)
}

// sessionNameFor names a session after its level and start time.
func sessionNameFor(lvl *level.Level, levelFile string, startedAt time.Time) string {
	base := lvl.Name
	if base == "" {
		base = strings.TrimSuffix(filepath.Base(levelFile), filepath.Ext(levelFile))
	}
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, base)
	if base == "" {
		base = "session"
	}
	return fmt.Sprintf("%s_%s", base, startedAt.Format("20060102_150405"))
}

// saveLevel writes the current seat state as a level file in dir.
func saveLevel(dir, name string, lvl *level.Level) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create save dir: %w", err)
	}
	path := filepath.Join(dir, name+".level")
	if err := level.SaveFile(path, lvl); err != nil {
		return "", err
	}
	return path, nil
}
