// Package models defines the core entities, signatures and invocation data shared by
// operations and the registry.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// PathSeparator separates a namespace from an operation name: "{namespace}::{operation}".
const PathSeparator = "::"

// SelfNamespace addresses schematics of the flow that hosts an operation.
const SelfNamespace = "self"

var ErrInvalidPath = errors.New("invalid operation path")

// Entity addresses an operation inside a component namespace.
type Entity struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// NewEntity creates an entity from its parts.
func NewEntity(namespace, name string) Entity {
	return Entity{Namespace: namespace, Name: name}
}

// ParsePath parses a path in format "{namespace}::{operation}" into its components.
func ParsePath(path string) (string, string, bool) {
	ns, op, ok := strings.Cut(path, PathSeparator)
	if !ok || ns == "" || op == "" {
		return "", "", false
	}

	return ns, op, true
}

// ParseEntity parses an operation path into an Entity.
func ParseEntity(path string) (Entity, error) {
	ns, op, ok := ParsePath(path)
	if !ok {
		return Entity{}, fmt.Errorf("%w: '%s'", ErrInvalidPath, path)
	}

	return NewEntity(ns, op), nil
}

// IsSelf reports whether the entity addresses a schematic of the hosting flow.
func (e Entity) IsSelf() bool {
	return e.Namespace == SelfNamespace
}

func (e Entity) String() string {
	return e.Namespace + PathSeparator + e.Name
}

// ComponentReference pairs the calling entity with the entity being called.
type ComponentReference struct {
	Origin Entity `json:"origin"`
	Target Entity `json:"target"`
}

func (r ComponentReference) String() string {
	return r.Origin.String() + "=>" + r.Target.String()
}
