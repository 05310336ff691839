// Package telemetry publishes session lifecycle and presence events to an
// MQTT broker. Disabled by default; intended for users running their own
// dashboards off the companion.
package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/axolotlclient/axolotlclient-api/internal/config"
	"github.com/axolotlclient/axolotlclient-api/internal/events"
)

const connectTimeout = 10 * time.Second

// Publisher forwards event bus traffic to an MQTT topic.
type Publisher struct {
	cfg      *config.Config
	eventBus *events.EventBus
	client   mqtt.Client
	topic    string
}

// NewPublisher creates an MQTT publisher from configuration.
func NewPublisher(cfg *config.Config, eventBus *events.EventBus) (*Publisher, error) {
	mqttCfg := cfg.GetApplicationData().MQTT

	if !mqttCfg.Enabled {
		return nil, fmt.Errorf("MQTT telemetry is disabled")
	}

	hostname, _ := os.Hostname()

	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if mqttCfg.UseTLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, mqttCfg.BrokerURL, mqttCfg.Port))

	if mqttCfg.ClientID != "" {
		opts.SetClientID(mqttCfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("axolotld-%s", hostname))
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	topic := mqttCfg.Topic
	if topic == "" {
		topic = "axolotlclient/session"
	}

	return &Publisher{
		cfg:      cfg,
		eventBus: eventBus,
		client:   mqtt.NewClient(opts),
		topic:    topic,
	}, nil
}

// Start connects to the broker and subscribes to session events.
func (p *Publisher) Start(ctx context.Context) error {
	log.Info().
		Str("broker", p.cfg.GetApplicationData().MQTT.BrokerURL).
		Msg("connecting to MQTT broker")

	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("MQTT connect timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT connect failed: %w", err)
	}

	for _, t := range []events.EventType{
		events.EventSessionStarting,
		events.EventSessionAuthenticated,
		events.EventSessionClosed,
		events.EventSocketClosed,
		events.EventStatusPosted,
		events.EventStatusUpdate,
	} {
		p.eventBus.Subscribe(t, "mqtt", p.publish)
	}

	go func() {
		<-ctx.Done()
		p.client.Disconnect(250)
	}()

	return nil
}

// publish serializes one event onto the session topic.
func (p *Publisher) publish(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(map[string]interface{}{
		"type":    string(event.Type),
		"source":  event.Source,
		"payload": event.Payload,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("MQTT publish timed out")
	}
	return token.Error()
}
