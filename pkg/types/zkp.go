package types

// ZKProof is a stateless proof value produced by the external prover. It is
// not owned by any entity and may be cached by content hash. The verifier
// side of the boundary never sees the private inputs the proof was built from.
type ZKProof struct {
	Proof             []byte `json:"proof"`
	PublicInputs      []byte `json:"public_inputs"`
	VerificationKeyID string `json:"verification_key_id"`
	CircuitType       string `json:"circuit_type"`
}

// Clone returns a deep copy of the proof
func (p *ZKProof) Clone() *ZKProof {
	if p == nil {
		return nil
	}
	out := *p
	out.Proof = append([]byte(nil), p.Proof...)
	out.PublicInputs = append([]byte(nil), p.PublicInputs...)
	return &out
}

// ProofVerification is the outcome of a proof verification. Details carry
// verifier-supplied context such as the mismatch reason on rejection.
type ProofVerification struct {
	Valid   bool              `json:"valid"`
	Details map[string]string `json:"verification_details,omitempty"`
}
