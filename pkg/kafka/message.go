package kafka

import (
	"encoding/json"
	"strings"
	"time"
)

// ScaleMessage is a raw reading received from a bench scale over the broker.
// The payload format varies by scale firmware, so Value is kept verbatim for
// the normalizer; only the scale identity is resolved here.
type ScaleMessage struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte

	// Scale is the resolved scale identifier, upper-cased.
	Scale string

	ReceivedAt time.Time
}

// scaleFields are the payload fields a scale may carry its own name in, in
// priority order. Older firmware publishes "timbangan_name".
var scaleFields = []string{"scale", "scale_name", "timbangan_name"}

// ResolveScale determines which scale a message came from. Resolution order:
// a name field inside a JSON payload, then the message key, then the last
// topic segment. Returns "" when none apply.
func ResolveScale(topic string, key []byte, value []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(value, &payload); err == nil {
		for _, field := range scaleFields {
			if name, ok := payload[field].(string); ok && name != "" {
				return canonicalScale(name)
			}
		}
	}

	if len(key) > 0 {
		return canonicalScale(string(key))
	}

	if idx := strings.LastIndex(topic, "/"); idx >= 0 && idx < len(topic)-1 {
		return canonicalScale(topic[idx+1:])
	}
	if idx := strings.LastIndex(topic, "."); idx >= 0 && idx < len(topic)-1 {
		return canonicalScale(topic[idx+1:])
	}

	return ""
}

func canonicalScale(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
