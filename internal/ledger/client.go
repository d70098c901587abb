// Package ledger defines the opaque RPC boundary to the permissioned ledger
// node. Payloads cross this boundary as exact bytes; the client never
// re-encodes the encrypted content or proof material it is handed.
package ledger

import (
	"context"
	"time"

	"github.com/SUOKE2024/suoke-life-sub003/pkg/types"
)

// Client is the ledger node boundary. Implementations must classify failures
// with the shared error taxonomy: transport failures before the node
// acknowledged the request are NETWORK_ERROR (retryable), node-side
// rejections after acknowledgement are BLOCKCHAIN_ERROR (never retried
// automatically), and deadline expiry is TIMEOUT.
type Client interface {
	SubmitHealthRecord(ctx context.Context, req *SubmitRecordRequest) (*SubmitRecordResponse, error)
	VerifyHealthRecord(ctx context.Context, req *VerifyRecordRequest) (*VerifyRecordResponse, error)
	VerifyWithZKP(ctx context.Context, req *VerifyZKPRequest) (*VerifyZKPResponse, error)
	GetHealthDataRecords(ctx context.Context, req *ListRecordsRequest) (*ListRecordsResponse, error)
	AuthorizeAccess(ctx context.Context, req *AuthorizeAccessRequest) (*AuthorizeAccessResponse, error)
	RevokeAccess(ctx context.Context, req *RevokeAccessRequest) (*RevokeAccessResponse, error)
	GetBlockchainStatus(ctx context.Context, req *StatusRequest) (*StatusResponse, error)
}

// SubmitRecordRequest anchors an encrypted record on the ledger
type SubmitRecordRequest struct {
	SubjectID        string         `json:"subject_id"`
	DataType         string         `json:"data_type"`
	ContentHash      []byte         `json:"content_hash"`
	EncryptedPayload []byte         `json:"encrypted_payload"`
	Metadata         types.Metadata `json:"metadata,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
}

// SubmitRecordResponse is the node's acknowledgement of an anchoring transaction
type SubmitRecordResponse struct {
	TransactionID string `json:"transaction_id"`
	BlockHash     string `json:"block_hash"`
	Success       bool   `json:"success"`
	Message       string `json:"message"`
}

// VerifyRecordRequest checks an anchored hash against an expected value
type VerifyRecordRequest struct {
	TransactionID string `json:"transaction_id"`
	ContentHash   []byte `json:"content_hash"`
}

// VerifyRecordResponse carries the node's verification verdict
type VerifyRecordResponse struct {
	Valid                 bool      `json:"valid"`
	Message               string    `json:"message"`
	VerificationTimestamp time.Time `json:"verification_timestamp"`
	RecordStatus          string    `json:"record_status"`
}

// VerifyZKPRequest submits a proof for on-ledger verification. Private
// inputs never appear here.
type VerifyZKPRequest struct {
	VerifierID        string `json:"verifier_id"`
	DataType          string `json:"data_type"`
	CircuitType       string `json:"circuit_type"`
	Proof             []byte `json:"proof"`
	PublicInputs      []byte `json:"public_inputs"`
	VerificationKeyID string `json:"verification_key_id"`
}

// VerifyZKPResponse carries the proof verification verdict
type VerifyZKPResponse struct {
	Valid               bool              `json:"valid"`
	Message             string            `json:"message"`
	VerificationDetails map[string]string `json:"verification_details,omitempty"`
}

// ListRecordsRequest pages through anchored records. TransactionID narrows
// the listing to a single transaction when set.
type ListRecordsRequest struct {
	SubjectID     string `json:"subject_id"`
	DataType      string `json:"data_type,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Page          int    `json:"page"`
	PageSize      int    `json:"page_size"`
}

// ListRecordsResponse is one page of anchored records
type ListRecordsResponse struct {
	Records    []*types.HealthRecord `json:"records"`
	TotalCount int                   `json:"total_count"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
}

// AuthorizeAccessRequest registers a time-bound access grant on the ledger
type AuthorizeAccessRequest struct {
	SubjectID      string             `json:"subject_id"`
	GranteeID      string             `json:"grantee_id"`
	DataTypes      []string           `json:"data_types"`
	Permissions    []types.Permission `json:"permissions"`
	ExpirationTime time.Time          `json:"expiration_time"`
	Policies       map[string]string  `json:"policies,omitempty"`
}

// AuthorizeAccessResponse acknowledges grant registration
type AuthorizeAccessResponse struct {
	AuthorizationID string `json:"authorization_id"`
	Success         bool   `json:"success"`
	Message         string `json:"message"`
}

// RevokeAccessRequest revokes a previously registered grant
type RevokeAccessRequest struct {
	AuthorizationID string `json:"authorization_id"`
	SubjectID       string `json:"subject_id"`
	Reason          string `json:"reason,omitempty"`
}

// RevokeAccessResponse acknowledges revocation
type RevokeAccessResponse struct {
	Success             bool      `json:"success"`
	Message             string    `json:"message"`
	RevocationTimestamp time.Time `json:"revocation_timestamp"`
}

// StatusRequest fetches node health. NodeInfo is included only on request
// since collecting it is comparatively expensive.
type StatusRequest struct {
	IncludeNodeInfo bool `json:"include_node_info"`
}

// StatusResponse is the node's health reading
type StatusResponse struct {
	CurrentBlockHeight uint64            `json:"current_block_height"`
	ConnectedNodes     int               `json:"connected_nodes"`
	ConsensusStatus    string            `json:"consensus_status"`
	SyncPercentage     float64           `json:"sync_percentage"`
	TxPoolSize         int               `json:"tx_pool_size"`
	LastBlockTimestamp time.Time         `json:"last_block_timestamp"`
	NodeInfo           map[string]string `json:"node_info,omitempty"`
}
