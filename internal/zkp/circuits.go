package zkp

import (
	"fmt"
	"sync"

	"github.com/SUOKE2024/suoke-life-sub003/pkg/types"
)

// FieldType is the declared type of one circuit input field
type FieldType string

const (
	FieldInt    FieldType = "int"
	FieldFloat  FieldType = "float"
	FieldString FieldType = "string"
	FieldBytes  FieldType = "bytes"
	FieldBool   FieldType = "bool"
)

// FieldSpec declares shape constraints for one private input field
type FieldSpec struct {
	Name     string
	Type     FieldType
	Required bool
	MaxSize  int // bytes for string/bytes fields, 0 = unbounded
}

// CircuitSchema declares a registered circuit: its identifier, the
// verification key the verifier side must use, and the private input shape
// the prover expects.
type CircuitSchema struct {
	Type              string
	VerificationKeyID string
	Fields            []FieldSpec
}

// ValidateInputs checks private inputs against the declared schema. This
// runs before any prover contact so malformed requests never leave the
// process.
func (s *CircuitSchema) ValidateInputs(inputs map[string]interface{}) error {
	if len(inputs) == 0 {
		return types.NewInvalidRequestError("private inputs must not be empty", map[string]interface{}{
			"circuit_type": s.Type,
		})
	}

	declared := make(map[string]FieldSpec, len(s.Fields))
	for _, f := range s.Fields {
		declared[f.Name] = f
	}

	for name := range inputs {
		if _, ok := declared[name]; !ok {
			return types.NewInvalidRequestError(
				fmt.Sprintf("field %q is not declared by circuit %s", name, s.Type), nil)
		}
	}

	for _, f := range s.Fields {
		value, present := inputs[f.Name]
		if !present {
			if f.Required {
				return types.NewInvalidRequestError(
					fmt.Sprintf("required field %q is missing for circuit %s", f.Name, s.Type), nil)
			}
			continue
		}
		if err := checkFieldValue(f, value); err != nil {
			return err
		}
	}

	return nil
}

func checkFieldValue(f FieldSpec, value interface{}) error {
	mismatch := func() error {
		return types.NewInvalidRequestError(
			fmt.Sprintf("field %q must be of type %s", f.Name, f.Type), nil)
	}

	switch f.Type {
	case FieldInt:
		switch v := value.(type) {
		case int, int32, int64:
			return nil
		case float64:
			// JSON numbers decode as float64; accept integral values only.
			if v == float64(int64(v)) {
				return nil
			}
			return mismatch()
		default:
			return mismatch()
		}
	case FieldFloat:
		switch value.(type) {
		case float32, float64, int, int32, int64:
			return nil
		default:
			return mismatch()
		}
	case FieldString:
		v, ok := value.(string)
		if !ok {
			return mismatch()
		}
		if f.MaxSize > 0 && len(v) > f.MaxSize {
			return types.NewInvalidRequestError(
				fmt.Sprintf("field %q exceeds maximum size %d", f.Name, f.MaxSize), nil)
		}
		return nil
	case FieldBytes:
		v, ok := value.([]byte)
		if !ok {
			return mismatch()
		}
		if f.MaxSize > 0 && len(v) > f.MaxSize {
			return types.NewInvalidRequestError(
				fmt.Sprintf("field %q exceeds maximum size %d", f.Name, f.MaxSize), nil)
		}
		return nil
	case FieldBool:
		if _, ok := value.(bool); !ok {
			return mismatch()
		}
		return nil
	default:
		return types.NewInvalidRequestError(
			fmt.Sprintf("field %q has unknown declared type %s", f.Name, f.Type), nil)
	}
}

// Registry holds the set of circuits proofs may be generated for
type Registry struct {
	mu       sync.RWMutex
	circuits map[string]CircuitSchema
}

// NewRegistry creates a registry preloaded with the built-in health circuits
func NewRegistry() *Registry {
	r := &Registry{circuits: make(map[string]CircuitSchema)}
	for _, schema := range builtinCircuits() {
		r.circuits[schema.Type] = schema
	}
	return r
}

// Register adds or replaces a circuit schema
func (r *Registry) Register(schema CircuitSchema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.circuits[schema.Type] = schema
}

// Get looks up a circuit schema by type
func (r *Registry) Get(circuitType string) (CircuitSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schema, ok := r.circuits[circuitType]
	return schema, ok
}

func builtinCircuits() []CircuitSchema {
	return []CircuitSchema{
		{
			Type:              "age_verification",
			VerificationKeyID: "vk-age-verification-v1",
			Fields: []FieldSpec{
				{Name: "birth_year", Type: FieldInt, Required: true},
				{Name: "current_year", Type: FieldInt, Required: true},
				{Name: "min_age", Type: FieldInt, Required: true},
			},
		},
		{
			Type:              "health_data_privacy_v1",
			VerificationKeyID: "vk-health-data-privacy-v1",
			Fields: []FieldSpec{
				{Name: "record_payload", Type: FieldBytes, Required: true, MaxSize: 1 << 20},
				{Name: "attribute_name", Type: FieldString, Required: true, MaxSize: 128},
				{Name: "attribute_value", Type: FieldString, Required: true, MaxSize: 512},
			},
		},
		{
			Type:              "vital_signs_range",
			VerificationKeyID: "vk-vital-signs-range-v1",
			Fields: []FieldSpec{
				{Name: "systolic", Type: FieldInt, Required: true},
				{Name: "diastolic", Type: FieldInt, Required: true},
				{Name: "lower_bound", Type: FieldInt, Required: true},
				{Name: "upper_bound", Type: FieldInt, Required: true},
			},
		},
	}
}
