// Command keeper-mirror follows a keeperd session: it keeps a copy of the
// host's seats and reports goal changes as frames arrive.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/opendungeons/keeper/internal/config"
	"github.com/opendungeons/keeper/internal/dispatcher"
	"github.com/opendungeons/keeper/internal/level"
	"github.com/opendungeons/keeper/internal/logging"
	"github.com/opendungeons/keeper/internal/netsync"
	"github.com/opendungeons/keeper/internal/ruleset"
	"github.com/opendungeons/keeper/internal/session"
	"github.com/opendungeons/keeper/internal/worker"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	Version   = "0.0.1"
	BuildDate = "unknown"

	ServiceName = "keeper-mirror"
)

func main() {
	flags := pflag.NewFlagSet(ServiceName, pflag.ExitOnError)
	configDir := flags.StringP("config", "c", ".", "directory holding "+config.FileName)
	flags.StringP("level", "l", "", "level file the host was started with (overrides levelFile)")
	flags.StringP("server", "s", "", "host sync URL (overrides net.serverUrl)")
	pollInterval := flags.Duration("poll", 100*time.Millisecond, "how often goal flags are read")
	showVersion := flags.Bool("version", false, "print the version and exit")
	_ = flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("%s %s (%s)\n", ServiceName, Version, BuildDate)
		return
	}

	_ = viper.BindPFlag("levelFile", flags.Lookup("level"))
	_ = viper.BindPFlag("net.serverUrl", flags.Lookup("server"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configDir, *pollInterval); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", ServiceName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configDir string, pollInterval time.Duration) error {
	configErr := config.Load(configDir)
	logLevel := config.GetString("logLevel")

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

	slogManager := logging.NewSlogManager()
	slogManager.Setup(logging.Options{
		Level:   logLevel,
		Console: os.Stdout,
		Graylog: graylog,
		Service: ServiceName,
	})
	logger := slogManager.Logger()
	if configErr != nil {
		logger.Warn("Failed to load config, using defaults", "error", configErr)
	}
	if graylogErr != nil {
		logger.Error("Failed to connect to Graylog", "error", graylogErr)
	}

	rules := ruleset.Default()
	if path := config.GetString("rulesetFile"); path != "" {
		var err error
		if rules, err = ruleset.Load(path); err != nil {
			return fmt.Errorf("failed to load ruleset: %w", err)
		}
	}
	lvl, err := level.NewLoader(logger).LoadFile(config.GetString("levelFile"))
	if err != nil {
		return fmt.Errorf("failed to load level: %w", err)
	}
	mirror, err := session.NewMirror(session.Dependencies{Logger: logger, Ruleset: rules}, lvl.Seats)
	if err != nil {
		return fmt.Errorf("failed to create mirror: %w", err)
	}
	v := newView(mirror, logger)

	events, err := dispatcher.New(logging.NewDispatcherLogger(logging.NewZerolog(os.Stderr, logLevel, "dispatcher")))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer events.Close()
	worker.RegisterMirrorHandlers(events, v)

	url := config.GetNetConfig().ServerURL
	client, err := netsync.Dial(ctx, url, events, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	errc := make(chan error, 1)
	go func() { errc <- client.Run(ctx) }()

	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-errc:
			v.poll()
			logger.Info("Mirror stopped", "frames", client.Applied(), "stale", client.Stale())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case <-ticker.C:
			v.poll()
		}
	}
}
