package types

import "time"

// RecordStatus tracks the ledger lifecycle of an anchored record
type RecordStatus string

const (
	RecordStatusPending   RecordStatus = "pending"
	RecordStatusConfirmed RecordStatus = "confirmed"
	RecordStatusFailed    RecordStatus = "failed"
)

// MetadataEntry is one key-value pair of record metadata
type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Metadata is an ordered key-value list. Order is preserved across the wire,
// unlike a Go map. Well-known keys per data type:
//
//	vital_signs:    "unit", "device_id", "measured_at"
//	laboratory:     "lab_id", "panel", "reference_range"
//	medication:     "drug_code", "dose", "frequency"
//	inquiry:        "session_id", "practitioner_id"
type Metadata []MetadataEntry

// Get returns the first value stored under key
func (m Metadata) Get(key string) (string, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// Clone returns a copy safe to hand to other components
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	copy(out, m)
	return out
}

// HealthRecord represents an encrypted health data record anchored on the
// ledger. A record is immutable once confirmed; corrections are expressed as
// a new record, never by mutating an anchored one.
type HealthRecord struct {
	ID               string       `json:"id"` // ledger transaction ID
	SubjectID        string       `json:"subject_id"`
	DataType         string       `json:"data_type"`
	ContentHash      []byte       `json:"content_hash"`
	EncryptedPayload []byte       `json:"encrypted_payload"`
	Metadata         Metadata     `json:"metadata,omitempty"`
	Timestamp        time.Time    `json:"timestamp"`
	BlockHash        string       `json:"block_hash,omitempty"`
	Status           RecordStatus `json:"status"`
}

// Clone returns a deep copy for use as a read-only view model
func (r *HealthRecord) Clone() *HealthRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.ContentHash = append([]byte(nil), r.ContentHash...)
	out.EncryptedPayload = append([]byte(nil), r.EncryptedPayload...)
	out.Metadata = r.Metadata.Clone()
	return &out
}

// VerificationResult is the outcome of an integrity check against the ledger
type VerificationResult struct {
	Valid                 bool      `json:"valid"`
	VerificationTimestamp time.Time `json:"verification_timestamp"`
	Message               string    `json:"message"`
}

// RecordPage is one page of a record listing
type RecordPage struct {
	Records    []*HealthRecord `json:"records"`
	TotalCount int             `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
}
