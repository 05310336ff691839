// axolotld - AxolotlClient backend companion daemon.
//
// axolotld maintains the session with the AxolotlClient social backend:
// it authenticates the local account, keeps the push channel open,
// mirrors chat into a local history cache, reports presence, and exposes
// the session to local tooling over a REST API and an interactive console.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/axolotlclient/axolotlclient-api/internal/api"
	"github.com/axolotlclient/axolotlclient-api/internal/cli"
	"github.com/axolotlclient/axolotlclient-api/internal/config"
	"github.com/axolotlclient/axolotlclient-api/internal/events"
	"github.com/axolotlclient/axolotlclient-api/internal/history"
	"github.com/axolotlclient/axolotlclient-api/internal/rest"
	"github.com/axolotlclient/axolotlclient-api/internal/telemetry"
	"github.com/axolotlclient/axolotlclient-api/internal/util"
)

const (
	AppName    = "axolotld"
	AppVersion = "1.0.0"
)

func main() {
	fmt.Printf("%s v%s - AxolotlClient backend companion\n\n", AppName, AppVersion)

	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Msg("starting axolotld")

	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logCfg := cfg.GetApplicationData().Logging
	if err := util.InitLogger(util.LogConfig{
		Level:      logCfg.Level,
		Directory:  logCfg.Directory,
		MaxSizeMB:  logCfg.MaxSizeMB,
		MaxBackups: logCfg.MaxBackups,
		Console:    true,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger")
	}

	if cfg.IsFirstRun() {
		log.Warn().Str("config", cfg.Path()).
			Msg("no account configured, set api_data.account in the config file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewEventBus()

	var store *history.Store
	if histCfg := cfg.GetApplicationData().History; histCfg.Enabled {
		store, err = history.Open(histCfg.Path)
		if err != nil {
			log.Error().Err(err).Msg("failed to open chat history, continuing without")
		} else {
			defer store.Close()
		}
	}

	session := api.NewSession(cfg, eventBus, api.SessionOptions{
		Consent: cli.TerminalConsentPrompter{},
		History: store,
	})

	if cfg.GetApplicationData().REST.Enabled {
		restServer := rest.NewServer(cfg, eventBus, session)
		go func() {
			if err := restServer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("REST server stopped")
			}
		}()
	}

	if cfg.GetApplicationData().MQTT.Enabled {
		publisher, err := telemetry.NewPublisher(cfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("MQTT telemetry unavailable")
		} else if err := publisher.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to start MQTT telemetry")
		}
	}

	account := cfg.GetAPIData().Account
	session.Startup(api.Identity{
		UUID:     account.UUID,
		Username: account.Username,
		Offline:  account.Offline,
	})

	console := cli.NewCLI(cfg, eventBus, session)
	go console.Start(ctx)

	// Shutdown on signal or CLI quit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	shutdownCh := make(chan struct{}, 1)
	eventBus.Subscribe(events.EventShutdown, "main", func(context.Context, events.Event) error {
		select {
		case shutdownCh <- struct{}{}:
		default:
		}
		return nil
	})

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-shutdownCh:
		log.Info().Msg("shutting down")
	}

	session.Shutdown()
	cancel()
	eventBus.Stop()
}
