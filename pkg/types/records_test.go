package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata(t *testing.T) {
	meta := Metadata{
		{Key: "unit", Value: "bpm"},
		{Key: "device_id", Value: "wearable-7"},
		{Key: "measured_at", Value: "2026-08-24T08:00:00Z"},
	}

	t.Run("get returns the first value for a key", func(t *testing.T) {
		value, ok := meta.Get("device_id")
		assert.True(t, ok)
		assert.Equal(t, "wearable-7", value)

		_, ok = meta.Get("missing")
		assert.False(t, ok)
	})

	t.Run("order survives a JSON round trip", func(t *testing.T) {
		encoded, err := json.Marshal(meta)
		require.NoError(t, err)

		var decoded Metadata
		require.NoError(t, json.Unmarshal(encoded, &decoded))

		assert.Equal(t, meta, decoded)
	})

	t.Run("clone is independent of the original", func(t *testing.T) {
		clone := meta.Clone()
		clone[0].Value = "mmHg"

		assert.Equal(t, "bpm", meta[0].Value)
	})
}

func TestHealthRecord_Clone(t *testing.T) {
	record := &HealthRecord{
		ID:               "tx-001",
		SubjectID:        "subject-1",
		ContentHash:      []byte{0x01, 0x02},
		EncryptedPayload: []byte{0x03, 0x04},
		Metadata:         Metadata{{Key: "unit", Value: "bpm"}},
		Status:           RecordStatusPending,
	}

	clone := record.Clone()
	clone.ContentHash[0] = 0xFF
	clone.Metadata[0].Value = "mmHg"
	clone.Status = RecordStatusConfirmed

	assert.Equal(t, byte(0x01), record.ContentHash[0])
	assert.Equal(t, "bpm", record.Metadata[0].Value)
	assert.Equal(t, RecordStatusPending, record.Status)

	var nilRecord *HealthRecord
	assert.Nil(t, nilRecord.Clone())
}
