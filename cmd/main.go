// Package main provides the entry point for the pvbus field gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pvbus/pvbus/internal/api"
	"github.com/pvbus/pvbus/internal/aurora"
	"github.com/pvbus/pvbus/internal/config"
	"github.com/pvbus/pvbus/internal/domain"
	"github.com/pvbus/pvbus/internal/pubsub"
	"github.com/pvbus/pvbus/internal/scheduler"
	"github.com/pvbus/pvbus/internal/solax"
	"github.com/pvbus/pvbus/internal/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	Version = "unknown" // Default version, can be overridden by build flags
)

func main() {
	code := run()
	os.Exit(code)
}

func run() int {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pvbus gateway %s\n", Version)
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		return 1
	}

	initLogger(cfg.LogLevel)

	log.Info().Str("version", Version).Msg("Starting pvbus gateway")
	cfg.Print()

	// Open the shared RS485 bus
	port, err := transport.OpenSerial(cfg.Serial.Port, cfg.Serial.BaudRate)
	if err != nil {
		log.Error().Err(err).Str("port", cfg.Serial.Port).Msg("Failed to open serial port")
		return 1
	}
	defer port.Close()

	// Build the device collection: Aurora inverters first, then Solax
	devices := buildDevices(cfg, port)
	log.Info().Int("count", len(devices)).Msg("Device collection built")

	// Initialize MQTT publisher
	var publisher domain.MessagePublisher
	if cfg.MQTT.Enabled {
		mqttPublisher := pubsub.NewMQTTPublisher(cfg)
		if err := mqttPublisher.Connect(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to connect to MQTT broker, using noop publisher")
			publisher = pubsub.NewNoopPublisher()
		} else {
			publisher = mqttPublisher
			log.Info().Msg("MQTT publisher connected successfully")
		}
	} else {
		log.Info().Msg("MQTT disabled, using noop publisher")
		publisher = pubsub.NewNoopPublisher()
	}
	defer publisher.Close()

	// Start the poll loop
	busMu := &sync.Mutex{}
	poller := scheduler.NewPoller(devices, publisher, cfg.MQTT.TopicPrefix, cfg.PollInterval(), busMu)
	if err := poller.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to start poller")
		return 1
	}

	// Start the HTTP API
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg, poller, Version)
		if err := apiServer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to start API server")
			return 1
		}
	}

	// Handle graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalChan
	log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if apiServer != nil {
		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping API server")
		}
	}
	if err := poller.Stop(); err != nil {
		log.Error().Err(err).Msg("Error stopping poller")
		return 1
	}

	log.Info().Msg("Gateway stopped")
	return 0
}

// buildDevices assembles the heterogeneous device collection from the
// configuration. Both protocol engines share the one serial port; the poller
// serializes their access.
func buildDevices(cfg *config.Config, port transport.Port) []domain.Device {
	var devices []domain.Device

	auroraEngine := aurora.NewEngine(port, cfg.SerialTimeout())
	for _, addr := range cfg.Devices.Aurora.Addresses {
		devices = append(devices, aurora.NewInverter(auroraEngine, byte(addr)))
	}

	if cfg.Devices.Solax.Enabled {
		solaxEngine := solax.NewEngine(port, cfg.SerialTimeout(), cfg.SettleDelay())
		devices = append(devices, solax.NewInverter(solaxEngine, byte(cfg.Devices.Solax.Address)))
	}

	return devices
}

// initLogger configures the global zerolog logger.
func initLogger(level string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		fmt.Printf("Invalid log level '%s', defaulting to 'info'\n", level)
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)
	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}
