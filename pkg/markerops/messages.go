// Package markerops defines the wire format for marker operation streams.
// External renderers and collectors decode these envelopes from the
// broadcaster WebSocket; the push client sends the same envelopes outbound.
package markerops

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message type constants matching the streaming protocol.
const (
	TypeMarkerOps     = "marker_ops"
	TypeSceneSnapshot = "scene_snapshot"
	TypeAck           = "ack"
)

// Envelope wraps all messages sent over the stream.
type Envelope struct {
	Type    string          `json:"type"`
	SentAt  time.Time       `json:"sentAt"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the collector's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// Op is one marker operation. Kind is create, update or remove; remove
// carries only the key. Orientation is the unit quaternion in w,x,y,z
// order.
type Op struct {
	Kind        string     `json:"kind"`
	Key         string     `json:"key"`
	Position    [3]float32 `json:"position"`
	Orientation [4]float32 `json:"orientation"`
	Bin         int        `json:"bin"`
	Selected    bool       `json:"selected"`
	DurationMS  int64      `json:"durationMs,omitempty"`
}

// OpsPayload carries one reconciliation pass's operation batch.
type OpsPayload struct {
	Metric  string `json:"metric"`
	Year    int    `json:"year"`
	Country string `json:"country,omitempty"`
	Ops     []Op   `json:"ops"`
}

// SceneMarker is one marker in a snapshot.
type SceneMarker struct {
	Key      string     `json:"key"`
	Position [3]float32 `json:"position"`
	Bin      int        `json:"bin"`
	Selected bool       `json:"selected"`
}

// SnapshotPayload carries the full displayed scene: everything a renderer
// joining mid-session needs without replaying the op history.
type SnapshotPayload struct {
	Metric    string        `json:"metric"`
	Year      int           `json:"year"`
	Country   string        `json:"country,omitempty"`
	GlobalMax float64       `json:"globalMax"`
	Markers   []SceneMarker `json:"markers"`
}

// NewEnvelope marshals payload and wraps it with the send timestamp.
func NewEnvelope(msgType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("error marshaling %s payload: %w", msgType, err)
	}
	return Envelope{
		Type:    msgType,
		SentAt:  time.Now().UTC(),
		Payload: raw,
	}, nil
}

// DecodeOps unwraps a marker_ops envelope.
func DecodeOps(env Envelope) (OpsPayload, error) {
	if env.Type != TypeMarkerOps {
		return OpsPayload{}, fmt.Errorf("expected %s envelope, got %q", TypeMarkerOps, env.Type)
	}
	var p OpsPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return OpsPayload{}, fmt.Errorf("error unmarshaling ops payload: %w", err)
	}
	return p, nil
}

// DecodeSnapshot unwraps a scene_snapshot envelope.
func DecodeSnapshot(env Envelope) (SnapshotPayload, error) {
	if env.Type != TypeSceneSnapshot {
		return SnapshotPayload{}, fmt.Errorf("expected %s envelope, got %q", TypeSceneSnapshot, env.Type)
	}
	var p SnapshotPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return SnapshotPayload{}, fmt.Errorf("error unmarshaling snapshot payload: %w", err)
	}
	return p, nil
}
