// Package mqttgw is the publish/subscribe ingestion adapter. It normalizes
// broker messages into the same internal Ingest call the HTTP endpoint
// uses and republishes advisories on per-device outbound topics.
//
// Known asymmetry: queued TARE/CALIBRATE commands are only delivered over
// the synchronous HTTP exchange. This transport updates weight and state
// but never carries a command to the device.
package mqttgw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"packhouse/internal/logger"
	"packhouse/internal/service"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout  = 4 * time.Second
	reconnectMax    = 30 * time.Second
	handleTimeout   = 10 * time.Second
	disconnectGrace = 250 // ms, for paho's Disconnect
)

// Config carries broker connection settings.
type Config struct {
	URL      string
	Username string
	Password string
	Prefix   string // topic namespace, e.g. "packhouse"
	ClientID string
}

// Gateway owns the broker connection. Construct with New, hand it to the
// service layer as its Publisher, then Start it with the Ingestor to begin
// consuming.
type Gateway struct {
	cfg    Config
	log    *logger.Logger
	ingest service.Ingestor
	client mqtt.Client
}

func New(cfg Config, log *logger.Logger) *Gateway {
	if cfg.Prefix == "" {
		cfg.Prefix = "packhouse"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "packhouse-server"
	}
	return &Gateway{cfg: cfg, log: log}
}

// Start connects to the broker and subscribes to the device topics.
// Subscriptions are re-established on every reconnect; the broker delivers
// at-least-once and the detector's idempotence absorbs replays.
func (g *Gateway) Start(ingest service.Ingestor) error {
	if g.cfg.URL == "" {
		return errors.New("mqtt url is empty")
	}
	g.ingest = ingest

	opts := mqtt.NewClientOptions().
		AddBroker(g.cfg.URL).
		SetClientID(g.cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(reconnectMax).
		SetConnectTimeout(connectTimeout).
		SetOrderMatters(false)
	if g.cfg.Username != "" {
		opts.SetUsername(g.cfg.Username)
		opts.SetPassword(g.cfg.Password)
	}
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		g.log.Infow("mqtt_connected", "url", g.cfg.URL)
		g.subscribe(c)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		g.log.Warnw("mqtt_connection_lost", "err", err)
	})

	g.client = mqtt.NewClient(opts)
	token := g.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect mqtt broker: %w", token.Error())
	}
	return nil
}

// Stop disconnects from the broker, letting in-flight work finish.
func (g *Gateway) Stop() {
	if g.client != nil && g.client.IsConnected() {
		g.client.Disconnect(disconnectGrace)
	}
}

func (g *Gateway) subscribe(c mqtt.Client) {
	filters := map[string]byte{
		g.cfg.Prefix + "/loadcell/+/" + kindWeight: 0,
		g.cfg.Prefix + "/loadcell/+/" + kindPack:   0,
	}
	token := c.SubscribeMultiple(filters, g.handleMessage)
	if token.Wait() && token.Error() != nil {
		g.log.Errorw("mqtt_subscribe_failed", "err", token.Error())
		return
	}
	g.log.Infow("mqtt_subscribed", "prefix", g.cfg.Prefix)
}

func (g *Gateway) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	token, kind, ok := parseTopic(g.cfg.Prefix, msg.Topic())
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	switch kind {
	case kindWeight:
		g.handleWeight(ctx, token, msg.Payload())
	case kindPack:
		g.handlePack(ctx, token, msg.Payload())
	}
}

func (g *Gateway) handleWeight(ctx context.Context, token string, payload []byte) {
	weight, relayOn, ok := parseWeightPayload(payload)
	if !ok {
		g.log.Debugw("mqtt_payload_unparseable", "topic_token", token)
		return
	}

	adv, err := g.ingest.Ingest(ctx, service.IngestInput{
		Token:   token,
		Weight:  weight,
		RelayOn: relayOn,
		// Commands ride the synchronous transport only.
		DeliverCommand: false,
	})
	if err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			// A message from a decommissioned or unregistered device must
			// not inject state anywhere; drop it.
			g.log.Warnw("mqtt_unknown_device_token", "topic_token", token)
			return
		}
		g.log.Errorw("mqtt_ingest_failed", "err", err, "topic_token", token)
		return
	}

	g.publishJSON(g.deviceTopic(token, "advisory"), adv)
	g.publish(g.deviceTopic(token, "realtime"), []byte(fmt.Sprintf("%g", weight)))
}

func (g *Gateway) handlePack(ctx context.Context, token string, payload []byte) {
	weight, _, ok := parseWeightPayload(payload)
	if !ok {
		weight = 0 // pack button without a weight still records the event
	}
	if err := g.ingest.RecordPack(ctx, token, weight); err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			g.log.Warnw("mqtt_unknown_device_token", "topic_token", token)
			return
		}
		g.log.Errorw("mqtt_pack_failed", "err", err, "topic_token", token)
	}
}

// PackingLogged implements service.Publisher: broadcast the event for
// device displays and invalidate live dashboards.
func (g *Gateway) PackingLogged(token, deviceName string, delta, total float64) {
	g.publishJSON(g.deviceTopic(token, "alerts"), map[string]interface{}{
		"event":      "PACKING_COMPLETED",
		"deviceName": deviceName,
		"weight":     delta,
		"total":      total,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
	g.publishJSON(g.cfg.Prefix+"/dashboard/update", map[string]interface{}{
		"event":     "PACKING_LOG_CREATED",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (g *Gateway) deviceTopic(token, kind string) string {
	return g.cfg.Prefix + "/loadcell/" + token + "/" + kind
}

func (g *Gateway) publishJSON(topic string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		g.log.Errorw("mqtt_encode_failed", "err", err, "topic", topic)
		return
	}
	g.publish(topic, data)
}

// publish is best-effort QoS 0; a drop here loses a broadcast, never a
// packing log.
func (g *Gateway) publish(topic string, payload []byte) {
	if g.client == nil || !g.client.IsConnected() {
		return
	}
	g.client.Publish(topic, 0, false, payload)
}
