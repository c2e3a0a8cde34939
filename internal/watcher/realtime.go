// Package watcher wires the decision engine to its collaborators and runs
// it as a long-lived process.
package watcher

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/morpheus1988wer/HertzBridge/internal/audiofile"
	"github.com/morpheus1988wer/HertzBridge/internal/conf"
	"github.com/morpheus1988wer/HertzBridge/internal/device"
	"github.com/morpheus1988wer/HertzBridge/internal/engine"
	"github.com/morpheus1988wer/HertzBridge/internal/events"
	"github.com/morpheus1988wer/HertzBridge/internal/loghints"
	"github.com/morpheus1988wer/HertzBridge/internal/logging"
	"github.com/morpheus1988wer/HertzBridge/internal/mqtt"
	"github.com/morpheus1988wer/HertzBridge/internal/observability"
	"github.com/morpheus1988wer/HertzBridge/internal/player"
	"github.com/morpheus1988wer/HertzBridge/internal/procwatch"
)

// RunRealtime starts the watcher daemon and blocks until SIGINT/SIGTERM.
func RunRealtime(settings *conf.Settings) error {
	log := logging.ForService("watcher")

	if info, err := host.Info(); err == nil {
		log.Info("starting watcher",
			"os", info.OS,
			"platform", info.Platform,
			"platform_version", info.PlatformVersion)
	} else {
		log.Warn("failed to read host info", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus(logging.ForService("status"))
	bus.Subscribe(func(update events.StatusUpdate) {
		if update.Track == "" {
			fmt.Println("status: idle")
			return
		}
		fmt.Printf("status: %s [%s] -> %s [%s]\n",
			update.Track, update.TrackFormat, update.Device, update.DeviceFormat)
	})

	var metrics *observability.Metrics
	if settings.Telemetry.Enabled {
		var err error
		metrics, err = observability.NewMetrics()
		if err != nil {
			return err
		}
		go func() {
			if err := metrics.Serve(ctx, settings.Telemetry.Listen); err != nil {
				log.Warn("telemetry endpoint stopped", "error", err)
			}
		}()
		log.Info("telemetry endpoint enabled", "listen", settings.Telemetry.Listen)
	}

	if settings.MQTT.Enabled {
		client := mqtt.NewClient(settings.MQTT, settings.Main.Name)
		if err := client.Connect(ctx); err != nil {
			// Status publishing is best-effort, the watcher runs without it.
			log.Warn("mqtt connect failed, status publishing disabled", "error", err)
		} else {
			bus.Subscribe(client.StatusConsumer())
			defer client.Disconnect()
		}
	}

	bridge := player.NewCommandBridge(settings.Player.Command)
	controller := device.NewMalgoController()
	inspector := audiofile.NewFileInspector()

	eng := engine.New(settings, bridge, controller, inspector, bus, metrics)

	watcher := procwatch.New(settings.Player.ProcessName, eng.PlayerTerminated)
	eng.SetProcessInfo(watcher)
	watcher.Start(ctx)
	defer watcher.Stop()

	if settings.Hints.Enabled && settings.Hints.Command != "" {
		monitor, err := loghints.NewStreamMonitor(
			settings.Hints.Command,
			settings.Hints.Pattern,
			func(h loghints.Hint) { eng.HandleRateHint(h.Rate, h.At) },
		)
		if err != nil {
			return err
		}
		if err := monitor.Start(ctx); err != nil {
			log.Warn("hint stream unavailable, continuing without hints", "error", err)
		} else {
			defer monitor.Stop()
		}
	}

	if err := eng.Start(); err != nil {
		return err
	}
	defer eng.Stop()

	log.Info("watcher running",
		"player_command", settings.Player.Command,
		"player_process", settings.Player.ProcessName,
		"device", settings.Device.Name)

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}
