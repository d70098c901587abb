// Package zkp manages zero-knowledge proof generation and verification for
// health data attributes. The proving-system mathematics live behind the
// ProverClient boundary; this package owns input validation, the circuit
// registry, and the rule that private inputs never reach a verifier.
package zkp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"

	"github.com/SUOKE2024/suoke-life-sub003/internal/ledger"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/logger"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/types"
)

// VerifyParams identifies one verification request against a proof
type VerifyParams struct {
	VerifierID string
	DataType   string
	Proof      *types.ZKProof
}

// Manager coordinates proof generation and verification
type Manager struct {
	prover   ProverClient
	client   ledger.Client
	registry *Registry
	logger   *logger.Logger

	// Proof cache keyed by content hash of the generation inputs. Proofs are
	// stateless values, so cache hits are exact re-requests.
	mu        sync.Mutex
	cache     map[string]*types.ZKProof
	cacheSize int
}

// NewManager creates a proof manager. client may be nil when on-ledger
// verification is not configured.
func NewManager(prover ProverClient, client ledger.Client, registry *Registry, cacheSize int, log *logger.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if cacheSize <= 0 {
		cacheSize = 256
	}
	return &Manager{
		prover:    prover,
		client:    client,
		registry:  registry,
		logger:    log,
		cache:     make(map[string]*types.ZKProof),
		cacheSize: cacheSize,
	}
}

// GenerateProof validates the private inputs against the circuit's declared
// schema and dispatches generation to the external prover. Schema mismatches
// fail INVALID_REQUEST without any prover contact.
func (m *Manager) GenerateProof(ctx context.Context, dataType string, privateInputs map[string]interface{}, circuitType string) (*types.ZKProof, error) {
	if dataType == "" {
		return nil, types.NewInvalidRequestError("data type is required", nil)
	}

	schema, ok := m.registry.Get(circuitType)
	if !ok {
		return nil, types.NewInvalidRequestError("unknown circuit type: "+circuitType, nil)
	}
	if err := schema.ValidateInputs(privateInputs); err != nil {
		return nil, err
	}

	cacheKey := proofCacheKey(circuitType, dataType, privateInputs)
	if cached := m.cachedProof(cacheKey); cached != nil {
		return cached.Clone(), nil
	}

	resp, err := m.prover.GenerateProof(ctx, &ProveRequest{
		CircuitType:   circuitType,
		DataType:      dataType,
		PrivateInputs: privateInputs,
	})
	if err != nil {
		m.logger.WithComponent("zkp").WithError(err).Warn("Proof generation failed")
		return nil, err
	}

	keyID := resp.VerificationKeyID
	if keyID == "" {
		keyID = schema.VerificationKeyID
	}

	proof := &types.ZKProof{
		Proof:             resp.Proof,
		PublicInputs:      resp.PublicInputs,
		VerificationKeyID: keyID,
		CircuitType:       circuitType,
	}

	m.storeProof(cacheKey, proof)

	m.logger.WithComponent("zkp").WithFields(map[string]interface{}{
		"circuit_type": circuitType,
		"data_type":    dataType,
	}).Info("Proof generated")

	return proof.Clone(), nil
}

// VerifyProof dispatches the proof to the external verifier. Only the proof
// bytes, the public inputs, and the circuit's verification key cross the
// boundary — never private inputs. The result is a pure function of those
// three values: no state is read or written, so repeated calls with the same
// arguments return the same verdict.
func (m *Manager) VerifyProof(ctx context.Context, params VerifyParams) (*types.ProofVerification, error) {
	if err := m.checkProofShape(params.Proof); err != nil {
		return nil, err
	}

	schema, _ := m.registry.Get(params.Proof.CircuitType)
	keyID := params.Proof.VerificationKeyID
	if keyID == "" {
		keyID = schema.VerificationKeyID
	}

	resp, err := m.prover.VerifyProof(ctx, &VerifyRequest{
		CircuitType:       params.Proof.CircuitType,
		Proof:             params.Proof.Proof,
		PublicInputs:      params.Proof.PublicInputs,
		VerificationKeyID: keyID,
	})
	if err != nil {
		return nil, err
	}

	result := &types.ProofVerification{
		Valid:   resp.Valid,
		Details: resp.Details,
	}
	if !resp.Valid && result.Details == nil {
		result.Details = map[string]string{"reason": "proof rejected by verifier"}
	}

	m.logger.Audit(params.VerifierID, "verify_zk_proof", params.Proof.CircuitType, result.Valid, map[string]interface{}{
		"data_type": params.DataType,
	})

	return result, nil
}

// VerifyOnLedger records a proof verification on the ledger via the
// verifyWithZKP boundary, subject to the same no-private-inputs rule
func (m *Manager) VerifyOnLedger(ctx context.Context, params VerifyParams) (*types.ProofVerification, error) {
	if m.client == nil {
		return nil, types.NewInvalidRequestError("on-ledger verification is not configured", nil)
	}
	if err := m.checkProofShape(params.Proof); err != nil {
		return nil, err
	}

	resp, err := m.client.VerifyWithZKP(ctx, &ledger.VerifyZKPRequest{
		VerifierID:        params.VerifierID,
		DataType:          params.DataType,
		CircuitType:       params.Proof.CircuitType,
		Proof:             params.Proof.Proof,
		PublicInputs:      params.Proof.PublicInputs,
		VerificationKeyID: params.Proof.VerificationKeyID,
	})
	if err != nil {
		return nil, err
	}

	result := &types.ProofVerification{
		Valid:   resp.Valid,
		Details: resp.VerificationDetails,
	}
	if !resp.Valid && result.Details == nil {
		result.Details = map[string]string{"reason": resp.Message}
	}
	return result, nil
}

func (m *Manager) checkProofShape(proof *types.ZKProof) error {
	if proof == nil || len(proof.Proof) == 0 {
		return types.NewInvalidRequestError("proof bytes are required", nil)
	}
	if len(proof.PublicInputs) == 0 {
		return types.NewInvalidRequestError("public inputs are required", nil)
	}
	if proof.CircuitType == "" {
		return types.NewInvalidRequestError("circuit type is required", nil)
	}
	if _, ok := m.registry.Get(proof.CircuitType); !ok {
		return types.NewInvalidRequestError("unknown circuit type: "+proof.CircuitType, nil)
	}
	return nil
}

func (m *Manager) cachedProof(key string) *types.ZKProof {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache[key]
}

func (m *Manager) storeProof(key string, proof *types.ZKProof) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.cache) >= m.cacheSize {
		// Full cache: drop one arbitrary entry rather than grow unbounded.
		for k := range m.cache {
			delete(m.cache, k)
			break
		}
	}
	m.cache[key] = proof.Clone()
}

// proofCacheKey hashes the generation inputs into a stable content key. Map
// keys are sorted so logically equal inputs always produce the same key.
func proofCacheKey(circuitType, dataType string, inputs map[string]interface{}) string {
	h := sha256.New()
	h.Write([]byte(circuitType))
	h.Write([]byte{0})
	h.Write([]byte(dataType))
	h.Write([]byte{0})

	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		if encoded, err := json.Marshal(inputs[k]); err == nil {
			h.Write(encoded)
		}
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}
