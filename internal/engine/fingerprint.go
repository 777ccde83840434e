package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/store"
)

type fingerprintPayload struct {
	WorldID    string         `json:"world_id"`
	Channel    string         `json:"channel"`
	SpeakerID  int64          `json:"speaker_id"`
	ListenerID int64          `json:"listener_id"`
	Snapshot   store.Snapshot `json:"snapshot"`
}

// Fingerprint hashes the inputs of one resolution. encoding/json writes map
// keys in sorted order, so equal inputs always produce the same hash.
func Fingerprint(worldID, channel string, speakerID, listenerID int64, snapshot store.Snapshot) (string, error) {
	payload, err := json.Marshal(fingerprintPayload{
		WorldID:    worldID,
		Channel:    channel,
		SpeakerID:  speakerID,
		ListenerID: listenerID,
		Snapshot:   snapshot,
	})
	if err != nil {
		return "", fmt.Errorf("encoding fingerprint payload: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
