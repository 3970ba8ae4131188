package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spatialplot/globeviz/pkg/markerops"
)

// PushConfig holds the outbound collector connection settings.
type PushConfig struct {
	URL         string
	Secret      string
	OutboxLimit int
}

// PushClient streams pass batches to a remote collector. Batches queue in
// the bounded outbox while the link is down; the newest batches win.
type PushClient struct {
	conn *connection
	cfg  PushConfig
}

// NewPushClient creates a push client for the collector at cfg.URL.
func NewPushClient(cfg PushConfig, logger *slog.Logger) *PushClient {
	return &PushClient{
		conn: newConnection(cfg.OutboxLimit, logger),
		cfg:  cfg,
	}
}

// Connect dials the collector and starts the read/write loops.
func (p *PushClient) Connect() error {
	return p.conn.dial(p.cfg.URL, p.cfg.Secret)
}

// Close disconnects from the collector.
func (p *PushClient) Close() error {
	return p.conn.close()
}

// SendOps queues one pass's operation batch (fire and forget).
func (p *PushClient) SendOps(payload markerops.OpsPayload) error {
	data, err := marshalEnvelope(markerops.TypeMarkerOps, payload)
	if err != nil {
		return err
	}
	p.conn.send(data)
	return nil
}

// SendSnapshot sends the full scene and waits for the collector's ack.
// The snapshot is cached and replayed after every reconnect so the
// collector always holds the current scene.
func (p *PushClient) SendSnapshot(payload markerops.SnapshotPayload) error {
	data, err := marshalEnvelope(markerops.TypeSceneSnapshot, payload)
	if err != nil {
		return err
	}

	p.conn.mu.Lock()
	p.conn.cachedSnapshot = data
	p.conn.mu.Unlock()

	return p.conn.sendAndWait(data, markerops.TypeSceneSnapshot, ackTimeout)
}

// Queued reports how many messages wait in the outbox.
func (p *PushClient) Queued() int {
	return p.conn.outbox.Len()
}

// Dropped reports how many queued messages the outbox has discarded.
func (p *PushClient) Dropped() uint64 {
	return p.conn.outbox.Dropped()
}

// marshalEnvelope builds the JSON bytes of a stamped envelope.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	env, err := markerops.NewEnvelope(msgType, payload)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("error marshaling %s envelope: %w", msgType, err)
	}
	return data, nil
}
