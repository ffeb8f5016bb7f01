package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"wifipresence/internal/store"
)

// devicePayload is the wire shape of one tracked device in a snapshot,
// decoupled from store.Record so the broadcast contract can evolve
// independently of the internal store representation.
type devicePayload struct {
	MACHash  string                       `json:"mac_hash"`
	Readings map[string]store.RSSIReading `json:"readings"`
	LastSeen uint64                       `json:"last_seen"`
	Position *store.Position              `json:"position,omitempty"`
}

type snapshotPayload struct {
	Devices     []devicePayload `json:"devices"`
	GeneratedAt int64           `json:"generated_at_unix_milli"`
}

// Run periodically serializes the store's snapshot and broadcasts it,
// gated by the capacity.Guard's rate limiter and CPU pause check (spec
// §4.7), until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, st *store.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if h.ConnectedCount() == 0 {
				continue
			}
			if !h.guard.AllowBroadcast() {
				continue
			}
			h.broadcastSnapshot(st, now)
		}
	}
}

func (h *Hub) broadcastSnapshot(st *store.Store, now time.Time) {
	records := st.Snapshot()
	devices := make([]devicePayload, 0, len(records))
	for _, rec := range records {
		devices = append(devices, devicePayload{
			MACHash:  rec.MACHash,
			Readings: rec.Readings,
			LastSeen: rec.LastSeen,
			Position: rec.Position,
		})
	}

	payload, err := json.Marshal(snapshotPayload{Devices: devices, GeneratedAt: now.UnixMilli()})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to serialize snapshot")
		return
	}
	h.Broadcast(payload)
}
