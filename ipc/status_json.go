package ipc

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

func msUntil(t time.Time) int64 {
	d := time.Until(t)
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}

// statusWire is the externally-observable status accessor shape from
// spec.md §6, rendered with json-iterator rather than encoding/json to
// match the teacher's drop-in-faster-JSON convention.
type statusWire struct {
	Connected           bool     `json:"connected"`
	Attempt             uint32   `json:"attempt"`
	LastError           *string  `json:"last_error,omitempty"`
	NextRetryMs         *int64   `json:"next_retry_ms,omitempty"`
	Endpoint            string   `json:"endpoint"`
	NegotiatedFeatures  []string `json:"negotiated_features,omitempty"`
}

func statusJSON(s ConnectionState) ([]byte, error) {
	wire := statusWire{
		Connected: s.Connected,
		Attempt:   s.Attempt,
		Endpoint:  s.Endpoint,
	}
	if s.LastError != "" {
		wire.LastError = &s.LastError
	}
	if !s.NextRetryDeadline.IsZero() {
		ms := msUntil(s.NextRetryDeadline)
		wire.NextRetryMs = &ms
	}
	if s.Connected {
		wire.NegotiatedFeatures = s.NegotiatedFeatures.Tags()
	}
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(wire)
}
