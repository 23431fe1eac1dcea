package switchnode

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dukex/flowroute/pkg/models"
)

var (
	ErrOperationNotFound     = errors.New("operation not found")
	ErrNodeInstanceReference = errors.New("switch configurations can not delegate to operation instances within a flow")
	ErrOutputMismatch        = errors.New("the default operation and all case conditions must have the same output signature")
)

// TargetKind tells how an operation path is resolved.
type TargetKind int

const (
	// TargetNamespace addresses "namespace::operation" in the component registry.
	TargetNamespace TargetKind = iota
	// TargetSelf addresses "self::schematic" in the hosting flow.
	TargetSelf
	// TargetNode is a bare name; it can only refer to a node instance and is rejected.
	TargetNode
)

func (k TargetKind) String() string {
	switch k {
	case TargetSelf:
		return "self"
	case TargetNode:
		return "node"
	default:
		return "namespace"
	}
}

// Target is an operation path resolved once at configuration time.
type Target struct {
	Kind   TargetKind
	Path   string
	Entity models.Entity
}

// ParseTarget classifies an operation path.
func ParseTarget(path string) Target {
	if name, ok := strings.CutPrefix(path, models.SelfNamespace+models.PathSeparator); ok {
		return Target{Kind: TargetSelf, Path: path, Entity: models.NewEntity(models.SelfNamespace, name)}
	}

	if entity, err := models.ParseEntity(path); err == nil {
		return Target{Kind: TargetNamespace, Path: path, Entity: entity}
	}

	return Target{Kind: TargetNode, Path: path, Entity: models.Entity{Name: path}}
}

// SignatureSource looks up operation signatures by entity.
type SignatureSource interface {
	OperationSignature(target models.Entity) (models.OperationSignature, bool)
}

// Environment is what signature generation can see of the hosting flow.
type Environment struct {
	Signatures SignatureSource
	// Nodes lists the node instance names of the parent flow.
	Nodes []string
}

func (e Environment) lookup(target Target) (models.OperationSignature, error) {
	if target.Kind == TargetNode {
		if slices.Contains(e.Nodes, target.Path) {
			return models.OperationSignature{}, fmt.Errorf(
				"%w: an operation instance named '%s' exists; reference the operation by path instead",
				ErrNodeInstanceReference, target.Path)
		}

		return models.OperationSignature{}, fmt.Errorf("%w: '%s'", ErrOperationNotFound, target.Path)
	}

	if e.Signatures == nil {
		return models.OperationSignature{}, fmt.Errorf("%w: '%s'", ErrOperationNotFound, target.Path)
	}

	sig, ok := e.Signatures.OperationSignature(target.Entity)
	if !ok {
		return models.OperationSignature{}, fmt.Errorf("%w: '%s'", ErrOperationNotFound, target.Path)
	}

	return sig, nil
}

// genSignature builds the switch signature: the discriminant and declared inputs in,
// the default operation's outputs out. Every case must expose the same output names.
func genSignature(id string, config *Config, defaultTarget Target, caseTargets []Target, env Environment) (models.OperationSignature, error) {
	defaultSig, err := env.lookup(defaultTarget)
	if err != nil {
		return models.OperationSignature{}, fmt.Errorf("invalid switch configuration: default operation: %w", err)
	}

	expected := defaultSig.SortedOutputNames()

	for i, target := range caseTargets {
		caseSig, err := env.lookup(target)
		if err != nil {
			return models.OperationSignature{}, fmt.Errorf("invalid switch configuration: case %d operation: %w", i, err)
		}

		if got := caseSig.SortedOutputNames(); !slices.Equal(got, expected) {
			return models.OperationSignature{}, fmt.Errorf("%w: '%s' has %v, '%s' has %v",
				ErrOutputMismatch, target.Path, got, defaultTarget.Path, expected)
		}
	}

	signature := models.NewOperationSignature(id).AddInput(Discriminant, models.TypeObject)
	signature.Inputs = append(signature.Inputs, config.Inputs...)
	signature.Outputs = slices.Clone(defaultSig.Outputs)

	return signature, nil
}
