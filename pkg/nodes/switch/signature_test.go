package switchnode

import (
	"testing"

	"github.com/dukex/flowroute/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signatureMap map[string]models.OperationSignature

func (m signatureMap) OperationSignature(target models.Entity) (models.OperationSignature, bool) {
	sig, ok := m[target.String()]

	return sig, ok
}

func opSignature(name string, outputs ...string) models.OperationSignature {
	sig := models.NewOperationSignature(name).AddInput("x", models.TypeObject)
	for _, out := range outputs {
		sig = sig.AddOutput(out, models.TypeObject)
	}

	return sig
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		path   string
		kind   TargetKind
		entity models.Entity
	}{
		{path: "self::sub", kind: TargetSelf, entity: models.NewEntity("self", "sub")},
		{path: "transform::echo", kind: TargetNamespace, entity: models.NewEntity("transform", "echo")},
		{path: "echo", kind: TargetNode, entity: models.Entity{Name: "echo"}},
		{path: "::echo", kind: TargetNode, entity: models.Entity{Name: "::echo"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			target := ParseTarget(tt.path)
			assert.Equal(t, tt.kind, target.Kind, target.Kind.String())
			assert.Equal(t, tt.entity, target.Entity)
			assert.Equal(t, tt.path, target.Path)
		})
	}
}

func TestGenSignature(t *testing.T) {
	env := Environment{Signatures: signatureMap{
		"ns::double": opSignature("double", "out", "err"),
		"ns::negate": opSignature("negate", "err", "out"),
		"ns::echo":   opSignature("echo", "out", "err"),
	}}

	raw := baseConfig()
	raw["outputs"] = []any{map[string]any{"name": "out"}, map[string]any{"name": "err"}}

	node, err := NewSwitchNode("router", raw, WithLogger(discardLogger))
	require.NoError(t, err)

	_, ok := node.Signature()
	assert.False(t, ok)

	sig, err := node.GenSignature(env)
	require.NoError(t, err)

	assert.Equal(t, "router", sig.Name)
	assert.Equal(t, []string{Discriminant, "x"}, models.FieldNames(sig.Inputs))
	assert.Equal(t, models.TypeObject, sig.Inputs[0].Type)
	assert.Equal(t, []string{"out", "err"}, models.FieldNames(sig.Outputs))

	cached, ok := node.Signature()
	require.True(t, ok)
	assert.Equal(t, sig, cached)
}

func TestGenSignatureErrors(t *testing.T) {
	tests := []struct {
		name     string
		env      Environment
		mutate   func(map[string]any)
		expected error
	}{
		{
			name: "output mismatch",
			env: Environment{Signatures: signatureMap{
				"ns::double": opSignature("double", "out"),
				"ns::negate": opSignature("negate", "other"),
				"ns::echo":   opSignature("echo", "out"),
			}},
			expected: ErrOutputMismatch,
		},
		{
			name: "unknown case operation",
			env: Environment{Signatures: signatureMap{
				"ns::double": opSignature("double", "out"),
				"ns::echo":   opSignature("echo", "out"),
			}},
			expected: ErrOperationNotFound,
		},
		{
			name:     "unknown default operation",
			env:      Environment{Signatures: signatureMap{}},
			expected: ErrOperationNotFound,
		},
		{
			name:     "no signature source",
			env:      Environment{},
			expected: ErrOperationNotFound,
		},
		{
			name:     "bare name of a node instance",
			env:      Environment{Signatures: signatureMap{}, Nodes: []string{"echo"}},
			mutate:   func(m map[string]any) { m["default"] = "echo" },
			expected: ErrNodeInstanceReference,
		},
		{
			name:     "bare name",
			env:      Environment{Signatures: signatureMap{}},
			mutate:   func(m map[string]any) { m["default"] = "echo" },
			expected: ErrOperationNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := baseConfig()
			if tt.mutate != nil {
				tt.mutate(raw)
			}

			node, err := NewSwitchNode("router", raw, WithLogger(discardLogger))
			require.NoError(t, err)

			_, err = node.GenSignature(tt.env)
			assert.ErrorIs(t, err, tt.expected)

			_, ok := node.Signature()
			assert.False(t, ok)
		})
	}
}
