package models

import (
	"slices"
)

// Common field types.
const (
	TypeObject = "object"
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
)

// Field is a named, typed port of an operation.
type Field struct {
	Name        string `json:"name"                  validate:"required" yaml:"name"`
	Type        string `json:"type,omitempty"        yaml:"type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required,omitempty"    yaml:"required,omitempty"`
}

// NewField creates a field.
func NewField(name, typ string) Field {
	return Field{Name: name, Type: typ}
}

// FieldNames returns the names of fields in declaration order.
func FieldNames(fields []Field) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}

	return names
}

// OperationSignature describes the inputs and outputs of one operation.
type OperationSignature struct {
	Name    string  `json:"name"`
	Inputs  []Field `json:"inputs"`
	Outputs []Field `json:"outputs"`
}

// NewOperationSignature creates an empty signature.
func NewOperationSignature(name string) OperationSignature {
	return OperationSignature{Name: name}
}

// AddInput appends an input field.
func (s OperationSignature) AddInput(name, typ string) OperationSignature {
	s.Inputs = append(slices.Clone(s.Inputs), NewField(name, typ))

	return s
}

// AddOutput appends an output field.
func (s OperationSignature) AddOutput(name, typ string) OperationSignature {
	s.Outputs = append(slices.Clone(s.Outputs), NewField(name, typ))

	return s
}

// SortedOutputNames returns output names in lexical order.
func (s OperationSignature) SortedOutputNames() []string {
	names := FieldNames(s.Outputs)
	slices.Sort(names)

	return names
}

// ComponentSignature lists the operations a component provides.
type ComponentSignature struct {
	Name       string               `json:"name"`
	Operations []OperationSignature `json:"operations"`
}

// Operation looks up an operation signature by name.
func (s ComponentSignature) Operation(name string) (OperationSignature, bool) {
	for _, op := range s.Operations {
		if op.Name == name {
			return op, true
		}
	}

	return OperationSignature{}, false
}
