package zkp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SUOKE2024/suoke-life-sub003/pkg/config"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/logger"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/types"
)

// ProveRequest asks the external prover to build a proof. This is the only
// message that carries private inputs, and it goes to the prover alone.
type ProveRequest struct {
	CircuitType   string                 `json:"circuit_type"`
	DataType      string                 `json:"data_type"`
	PrivateInputs map[string]interface{} `json:"private_inputs"`
}

// ProveResponse carries the generated proof material
type ProveResponse struct {
	Proof             []byte `json:"proof"`
	PublicInputs      []byte `json:"public_inputs"`
	VerificationKeyID string `json:"verification_key_id"`
}

// VerifyRequest asks the external verifier to check a proof. By construction
// it contains only the proof, the public inputs, and the verification key
// reference — the verifier never sees private inputs.
type VerifyRequest struct {
	CircuitType       string `json:"circuit_type"`
	Proof             []byte `json:"proof"`
	PublicInputs      []byte `json:"public_inputs"`
	VerificationKeyID string `json:"verification_key_id"`
}

// VerifyResponse carries the verifier's verdict
type VerifyResponse struct {
	Valid   bool              `json:"valid"`
	Details map[string]string `json:"details,omitempty"`
}

// ProverClient is the boundary to the external proving system
type ProverClient interface {
	GenerateProof(ctx context.Context, req *ProveRequest) (*ProveResponse, error)
	VerifyProof(ctx context.Context, req *VerifyRequest) (*VerifyResponse, error)
}

// HTTPProver implements ProverClient over the prover service's HTTP API
type HTTPProver struct {
	proverEndpoint   string
	verifierEndpoint string
	http             *http.Client
	logger           *logger.Logger
}

// NewHTTPProver creates a prover client with a per-call request timeout
func NewHTTPProver(cfg *config.ZKPConfig, log *logger.Logger) *HTTPProver {
	verifierEndpoint := cfg.VerifierEndpoint
	if verifierEndpoint == "" {
		verifierEndpoint = cfg.ProverEndpoint
	}
	return &HTTPProver{
		proverEndpoint:   cfg.ProverEndpoint,
		verifierEndpoint: verifierEndpoint,
		http: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		logger: log,
	}
}

// GenerateProof dispatches proof generation to the prover service
func (p *HTTPProver) GenerateProof(ctx context.Context, req *ProveRequest) (*ProveResponse, error) {
	var resp ProveResponse
	if err := p.post(ctx, p.proverEndpoint+"/v1/prove", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Proof) == 0 {
		return nil, types.NewVerificationFailedError("prover returned an empty proof", map[string]interface{}{
			"circuit_type": req.CircuitType,
		})
	}
	return &resp, nil
}

// VerifyProof dispatches proof verification to the verifier service
func (p *HTTPProver) VerifyProof(ctx context.Context, req *VerifyRequest) (*VerifyResponse, error) {
	var resp VerifyResponse
	if err := p.post(ctx, p.verifierEndpoint+"/v1/verify", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (p *HTTPProver) post(ctx context.Context, url string, reqBody, respBody interface{}) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return types.NewInvalidRequestError("failed to encode prover request", nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return types.NewInvalidRequestError("failed to build prover request", nil)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return types.NewTimeoutError("prover call timed out", err)
		}
		return types.NewNetworkError("prover unreachable", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return types.NewNetworkError("failed to read prover response", err)
	}

	switch {
	case httpResp.StatusCode == http.StatusOK:
	case httpResp.StatusCode >= 400 && httpResp.StatusCode < 500:
		return types.NewInvalidRequestError(
			fmt.Sprintf("prover rejected request: %s", string(body)),
			map[string]interface{}{"status_code": httpResp.StatusCode},
		)
	default:
		return types.NewNetworkError(fmt.Sprintf("prover error: status %d", httpResp.StatusCode), nil)
	}

	if err := json.Unmarshal(body, respBody); err != nil {
		return types.NewNetworkError("failed to decode prover response", err)
	}
	return nil
}
