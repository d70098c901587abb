package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/SUOKE2024/suoke-life-sub003/internal/anchor"
	"github.com/SUOKE2024/suoke-life-sub003/internal/grants"
	"github.com/SUOKE2024/suoke-life-sub003/internal/integrity"
	"github.com/SUOKE2024/suoke-life-sub003/internal/status"
	"github.com/SUOKE2024/suoke-life-sub003/internal/zkp"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/logger"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/monitoring"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/types"
)

// Handlers exposes the ledger core over HTTP
type Handlers struct {
	anchor   *anchor.Service
	verifier *integrity.Verifier
	zkp      *zkp.Manager
	grants   *grants.Registry
	monitor  *status.Monitor
	metrics  *monitoring.MetricsCollector
	logger   *logger.Logger
}

// NewHandlers creates the HTTP handler set
func NewHandlers(
	anchorSvc *anchor.Service,
	verifier *integrity.Verifier,
	zkpMgr *zkp.Manager,
	grantRegistry *grants.Registry,
	monitor *status.Monitor,
	metrics *monitoring.MetricsCollector,
	log *logger.Logger,
) *Handlers {
	return &Handlers{
		anchor:   anchorSvc,
		verifier: verifier,
		zkp:      zkpMgr,
		grants:   grantRegistry,
		monitor:  monitor,
		metrics:  metrics,
		logger:   log,
	}
}

// RegisterRoutes registers all API routes on the router
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/records", h.SubmitRecord).Methods(http.MethodPost)
	r.HandleFunc("/records", h.ListRecords).Methods(http.MethodGet)
	r.HandleFunc("/records/{transactionID}/refresh", h.RefreshRecord).Methods(http.MethodPost)
	r.HandleFunc("/records/{transactionID}/verify", h.VerifyRecord).Methods(http.MethodPost)

	r.HandleFunc("/proofs", h.GenerateProof).Methods(http.MethodPost)
	r.HandleFunc("/proofs/verify", h.VerifyProof).Methods(http.MethodPost)
	r.HandleFunc("/proofs/verify-on-ledger", h.VerifyProofOnLedger).Methods(http.MethodPost)

	r.HandleFunc("/grants", h.AuthorizeAccess).Methods(http.MethodPost)
	r.HandleFunc("/grants", h.ListGrants).Methods(http.MethodGet)
	r.HandleFunc("/grants/check", h.CheckAccess).Methods(http.MethodGet)
	r.HandleFunc("/grants/{grantID}", h.GetGrant).Methods(http.MethodGet)
	r.HandleFunc("/grants/{grantID}/revoke", h.RevokeAccess).Methods(http.MethodPost)

	r.HandleFunc("/status", h.LedgerStatus).Methods(http.MethodGet)
}

type submitRecordRequest struct {
	SubjectID string         `json:"subject_id"`
	DataType  string         `json:"data_type"`
	Payload   []byte         `json:"payload"`
	Metadata  types.Metadata `json:"metadata,omitempty"`
}

// SubmitRecord anchors a new health record
func (h *Handlers) SubmitRecord(w http.ResponseWriter, r *http.Request) {
	var req submitRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start := time.Now()
	record, err := h.anchor.Submit(r.Context(), req.SubjectID, req.DataType, req.Payload, req.Metadata)
	if err != nil {
		h.metrics.RecordLedgerTransaction("submit_health_record", "error", time.Since(start))
		h.writeLedgerError(w, err, "anchor")
		return
	}

	h.metrics.RecordLedgerTransaction("submit_health_record", "success", time.Since(start))
	writeJSON(w, http.StatusCreated, record)
}

// ListRecords pages through a subject's anchored records
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	result, err := h.anchor.ListRecords(r.Context(), q.Get("subject_id"), q.Get("data_type"), page, pageSize)
	if err != nil {
		h.writeLedgerError(w, err, "anchor")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type refreshRecordRequest struct {
	SubjectID string `json:"subject_id"`
}

// RefreshRecord re-reads a pending record's ledger state
func (h *Handlers) RefreshRecord(w http.ResponseWriter, r *http.Request) {
	var req refreshRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record := &types.HealthRecord{
		ID:        mux.Vars(r)["transactionID"],
		SubjectID: req.SubjectID,
		Status:    types.RecordStatusPending,
	}

	updated, err := h.anchor.RefreshRecord(r.Context(), record)
	if err != nil {
		h.writeLedgerError(w, err, "anchor")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type verifyRecordRequest struct {
	ExpectedHash []byte `json:"expected_hash"`
}

// VerifyRecord checks an anchored record's integrity
func (h *Handlers) VerifyRecord(w http.ResponseWriter, r *http.Request) {
	var req verifyRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.verifier.Verify(r.Context(), mux.Vars(r)["transactionID"], req.ExpectedHash)
	if err != nil {
		h.writeLedgerError(w, err, "integrity")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type generateProofRequest struct {
	DataType      string                 `json:"data_type"`
	CircuitType   string                 `json:"circuit_type"`
	PrivateInputs map[string]interface{} `json:"private_inputs"`
}

// GenerateProof generates a zero-knowledge proof over private health data
func (h *Handlers) GenerateProof(w http.ResponseWriter, r *http.Request) {
	var req generateProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	proof, err := h.zkp.GenerateProof(r.Context(), req.DataType, req.PrivateInputs, req.CircuitType)
	if err != nil {
		h.metrics.RecordProofOperation(req.CircuitType, "generate", "error")
		h.writeLedgerError(w, err, "zkp")
		return
	}

	h.metrics.RecordProofOperation(req.CircuitType, "generate", "success")
	writeJSON(w, http.StatusCreated, proof)
}

type verifyProofRequest struct {
	VerifierID string         `json:"verifier_id"`
	DataType   string         `json:"data_type"`
	Proof      *types.ZKProof `json:"proof"`
}

// VerifyProof checks a proof against its public inputs
func (h *Handlers) VerifyProof(w http.ResponseWriter, r *http.Request) {
	var req verifyProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.zkp.VerifyProof(r.Context(), zkp.VerifyParams{
		VerifierID: req.VerifierID,
		DataType:   req.DataType,
		Proof:      req.Proof,
	})
	if err != nil {
		h.writeLedgerError(w, err, "zkp")
		return
	}

	circuitType := ""
	if req.Proof != nil {
		circuitType = req.Proof.CircuitType
	}
	verdict := "rejected"
	if result.Valid {
		verdict = "accepted"
	}
	h.metrics.RecordProofOperation(circuitType, "verify", verdict)

	writeJSON(w, http.StatusOK, result)
}

// VerifyProofOnLedger records a proof verification on the ledger
func (h *Handlers) VerifyProofOnLedger(w http.ResponseWriter, r *http.Request) {
	var req verifyProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.zkp.VerifyOnLedger(r.Context(), zkp.VerifyParams{
		VerifierID: req.VerifierID,
		DataType:   req.DataType,
		Proof:      req.Proof,
	})
	if err != nil {
		h.writeLedgerError(w, err, "zkp")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type authorizeAccessRequest struct {
	SubjectID   string             `json:"subject_id"`
	GranteeID   string             `json:"grantee_id"`
	DataTypes   []string           `json:"data_types"`
	Permissions []types.Permission `json:"permissions"`
	TTLSeconds  int64              `json:"ttl_seconds"`
	Policies    map[string]string  `json:"policies,omitempty"`
}

// AuthorizeAccess issues a time-bound access grant
func (h *Handlers) AuthorizeAccess(w http.ResponseWriter, r *http.Request) {
	var req authorizeAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	grant, err := h.grants.Authorize(r.Context(), req.SubjectID, req.GranteeID,
		req.DataTypes, req.Permissions, req.TTLSeconds, req.Policies)
	if err != nil {
		h.writeLedgerError(w, err, "grants")
		return
	}
	writeJSON(w, http.StatusCreated, grant)
}

type revokeAccessRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RevokeAccess revokes a grant on behalf of the authenticated subject
func (h *Handlers) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	var req revokeAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	result, err := h.grants.Revoke(r.Context(), mux.Vars(r)["grantID"], claims.UserID, req.Reason)
	if err != nil {
		h.writeLedgerError(w, err, "grants")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetGrant returns one grant by ID
func (h *Handlers) GetGrant(w http.ResponseWriter, r *http.Request) {
	grant, err := h.grants.Get(mux.Vars(r)["grantID"])
	if err != nil {
		h.writeLedgerError(w, err, "grants")
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

// ListGrants returns the grants issued by a subject
func (h *Handlers) ListGrants(w http.ResponseWriter, r *http.Request) {
	subjectID := r.URL.Query().Get("subject_id")
	if subjectID == "" {
		writeError(w, http.StatusBadRequest, "subject_id is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"grants": h.grants.ListBySubject(subjectID),
	})
}

// CheckAccess answers a single authorization question
func (h *Handlers) CheckAccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	allowed := h.grants.IsAuthorized(
		q.Get("grantee_id"),
		q.Get("subject_id"),
		q.Get("data_type"),
		types.Permission(q.Get("permission")),
	)
	h.metrics.RecordGrantDecision(allowed)
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

// LedgerStatus returns the current ledger health snapshot. With
// refresh=true the snapshot is re-read from the node first.
func (h *Handlers) LedgerStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var snapshot *types.LedgerStatus
	if q.Get("refresh") == "true" {
		snapshot = h.monitor.RefreshDetailed(r.Context(), q.Get("node_info") == "true")
	} else {
		snapshot = h.monitor.Status()
	}

	h.metrics.RecordBreakerState(h.monitor.BreakerOpen())
	writeJSON(w, http.StatusOK, snapshot)
}

// writeLedgerError maps taxonomy codes onto HTTP statuses
func (h *Handlers) writeLedgerError(w http.ResponseWriter, err error, component string) {
	code := types.CodeOf(err)

	var httpStatus int
	switch code {
	case types.ErrCodeInvalidRequest:
		httpStatus = http.StatusBadRequest
	case types.ErrCodeDataNotFound:
		httpStatus = http.StatusNotFound
	case types.ErrCodePermissionDenied:
		httpStatus = http.StatusForbidden
	case types.ErrCodeVerificationFailed:
		httpStatus = http.StatusUnprocessableEntity
	case types.ErrCodeTimeout:
		httpStatus = http.StatusGatewayTimeout
	case types.ErrCodeNetworkError:
		httpStatus = http.StatusServiceUnavailable
	case types.ErrCodeBlockchainError:
		httpStatus = http.StatusBadGateway
	default:
		httpStatus = http.StatusInternalServerError
	}

	if httpStatus >= 500 {
		h.metrics.RecordSystemError(string(code), component)
	}

	writeJSON(w, httpStatus, map[string]string{
		"error": err.Error(),
		"code":  string(code),
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
