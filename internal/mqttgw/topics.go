package mqttgw

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Inbound message kinds.
const (
	kindWeight = "weight"
	kindPack   = "pack"
)

// parseTopic splits "<prefix>/loadcell/<token>/<kind>" into its token and
// kind. ok is false for anything else, including foreign prefixes.
func parseTopic(prefix, topic string) (token, kind string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != prefix || parts[1] != "loadcell" {
		return "", "", false
	}
	token, kind = parts[2], parts[3]
	if token == "" || (kind != kindWeight && kind != kindPack) {
		return "", "", false
	}
	return token, kind, true
}

// weightPayload is the structured form of an inbound reading.
type weightPayload struct {
	Weight    *float64 `json:"weight"`
	IsRelayOn *bool    `json:"isRelayOn"`
}

// parseWeightPayload accepts either a bare number ("12.4", what the field
// firmware publishes) or a JSON object with weight and optional relay
// state. Relay state defaults to on: an MQTT-only fleet still accumulates
// packing deltas without reporting the flag.
func parseWeightPayload(payload []byte) (weight float64, relayOn bool, ok bool) {
	s := strings.TrimSpace(string(payload))
	if s == "" {
		return 0, false, false
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true, true
	}

	var obj weightPayload
	if err := json.Unmarshal(payload, &obj); err != nil || obj.Weight == nil {
		return 0, false, false
	}
	relayOn = true
	if obj.IsRelayOn != nil {
		relayOn = *obj.IsRelayOn
	}
	return *obj.Weight, relayOn, true
}
