// Command droidctl reads the droid's RC receiver and drives its legs, dome,
// sounds and panels, publishing control events to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/droid-core/internal/audio"
	"github.com/sweeney/droid-core/internal/config"
	"github.com/sweeney/droid-core/internal/control"
	"github.com/sweeney/droid-core/internal/indicator"
	"github.com/sweeney/droid-core/internal/marcduino"
	"github.com/sweeney/droid-core/internal/mqtt"
	"github.com/sweeney/droid-core/internal/pwm"
	"github.com/sweeney/droid-core/internal/sabertooth"
	"github.com/sweeney/droid-core/internal/status"
	"github.com/sweeney/droid-core/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config file overlaid on the defaults")
	tick := flag.Duration("tick", 0, "Control tick (overrides config)")
	broker := flag.String("broker", "", `MQTT broker address (overrides config, "off" disables)`)
	heartbeat := flag.Duration("heartbeat", 0, "Heartbeat interval (overrides config, 0 keeps it)")
	httpAddr := flag.String("http", "", `HTTP status address (overrides config, "off" disables)`)
	actuatorPort := flag.String("actuator-port", "", "Motor controller serial port (overrides config)")
	audioDevice := flag.String("audio", "", "Audio device: mp3trigger, yx5300 or local (overrides config)")
	printConfig := flag.Bool("print-config", false, "Print the effective config and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	applyOverrides(&cfg, overrides{
		tick:         *tick,
		broker:       *broker,
		heartbeat:    *heartbeat,
		httpAddr:     *httpAddr,
		actuatorPort: *actuatorPort,
		audioDevice:  *audioDevice,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: invalid config: %v", err)
	}

	if *printConfig {
		data, err := config.Marshal(cfg)
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		fmt.Print(string(data))
		return
	}

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// overrides are the command-line settings that replace config values when set.
type overrides struct {
	tick         time.Duration
	broker       string
	heartbeat    time.Duration
	httpAddr     string
	actuatorPort string
	audioDevice  string
}

func applyOverrides(cfg *config.Config, o overrides) {
	if o.tick > 0 {
		cfg.Tick = o.tick
	}
	switch o.broker {
	case "":
	case "off":
		cfg.Telemetry.Broker = ""
	default:
		cfg.Telemetry.Broker = o.broker
	}
	if o.heartbeat > 0 {
		cfg.Telemetry.Heartbeat = o.heartbeat
	}
	switch o.httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = o.httpAddr
	}
	if o.actuatorPort != "" {
		cfg.Actuator.Port = o.actuatorPort
	}
	if o.audioDevice != "" {
		cfg.Audio.Device = o.audioDevice
	}
}

func run(cfg config.Config) error {
	runID := uuid.New().String()

	// Initialize the receiver
	src, err := pwm.NewGPIOSource(cfg.Radio.Chip)
	if err != nil {
		return fmt.Errorf("init radio: %w", err)
	}
	radio, err := pwm.NewDecoder(src, cfg.Radio)
	if err != nil {
		src.Close()
		return fmt.Errorf("init radio: %w", err)
	}
	defer radio.Close()

	// Initialize the sinks
	actuator, err := sabertooth.Open(cfg.Actuator)
	if err != nil {
		return fmt.Errorf("init actuator: %w", err)
	}
	defer actuator.Close()

	player, err := audio.Open(cfg.Audio)
	if err != nil {
		return fmt.Errorf("init audio: %w", err)
	}
	defer player.Close()

	link, err := marcduino.Open(cfg.MarcDuino)
	if err != nil {
		return fmt.Errorf("init marcduino: %w", err)
	}
	defer link.Close()

	led, err := indicator.Open(cfg.Indicator)
	if err != nil {
		return fmt.Errorf("init indicator: %w", err)
	}
	blinker := indicator.NewBlinker(cfg.Indicator, led)
	defer blinker.Close()

	// Initialize MQTT
	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	}
	if cfg.Telemetry.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.Telemetry, runID)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher = p
	} else {
		log.Printf("no MQTT broker configured, telemetry disabled")
		publisher = mqtt.LogPublisher{}
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), runID, status.Config{
		TickMs:       cfg.Tick.Milliseconds(),
		HeartbeatMs:  cfg.Telemetry.Heartbeat.Milliseconds(),
		Broker:       cfg.Telemetry.Broker,
		HTTPAddr:     cfg.HTTP.Addr,
		ActuatorPort: cfg.Actuator.Port,
		AudioDevice:  cfg.Audio.Device,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	controller := control.New(cfg, control.Deps{
		Radio:     radio,
		Actuator:  actuator,
		Player:    player,
		Link:      link,
		Indicator: blinker,
		Publisher: publisher,
		Tracker:   tracker,
		Rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	})
	if err := controller.Start(time.Now()); err != nil {
		return fmt.Errorf("attach radio: %w", err)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: run=%s tick=%v mode=%s broker=%q heartbeat=%v",
		runID, cfg.Tick, cfg.StartMode, cfg.Telemetry.Broker, cfg.Telemetry.Heartbeat)

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(controller, publisher, publisher, tracker, cfg.Telemetry.Heartbeat, time.Now, ticker.C, sigCh)
}

func runLoop(c *control.Controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			if err := c.Stop(); err != nil {
				log.Printf("stop motors: %v", err)
			}
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName)
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			for _, event := range c.Tick(t) {
				log.Printf("event: %s (mode=%s)", event.Type, event.Mode)
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}

			if !c.CheckHeartbeat(t, heartbeat) {
				continue
			}
			counts := c.Counts()
			log.Printf("heartbeat: mode=%s modes=%d combos=%d kills=%d moves=%d sounds=%d",
				c.Context().Mode, counts.ModeChanges, counts.Combos, counts.KillEdges, counts.DomeMoves, counts.AudioTriggers)

			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				tracker.SetNetwork(net)
			}
			hbEvent := mqtt.SystemEvent{
				Timestamp:  t,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
