package tech

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// Domain prefixes for content-addressed identity. The version suffix
// enables future algorithm migration.
const (
	DomainSystem     = "sanigraph/system/v1"
	DomainTechnology = "sanigraph/technology/v1"
)

// hashWithDomain computes SHA-256 with domain separation:
// SHA256(domain + 0x00 + data). The null byte prevents domain/data
// boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StructureHash computes the content-addressed identity of the System's
// network shape: stage order, technology structure, and connection
// triples. The UUID, the completion flag, and any attached mass-flow
// result are excluded - two systems with the same shape hash equal no
// matter when or how they were discovered.
//
// Connections are sorted by (product, upstream, downstream) before
// hashing so the hash does not depend on creation order.
func (s *System) StructureHash() (string, error) {
	stages := make([]any, len(s.Stages))
	for i, stage := range s.Stages {
		techs := make([]any, len(stage))
		for j, t := range stage {
			techs[j] = technologyNode(t)
		}
		stages[i] = techs
	}

	conns := make([]Connection, len(s.Connections))
	copy(conns, s.Connections)
	slices.SortFunc(conns, compareConnections)
	connNodes := make([]any, len(conns))
	for i, c := range conns {
		connNodes[i] = map[string]any{
			"product":    c.Product.Name,
			"upstream":   c.Upstream,
			"downstream": c.Downstream,
		}
	}

	canonical, err := marshalCanonical(map[string]any{
		"stages":      stages,
		"connections": connNodes,
	})
	if err != nil {
		return "", fmt.Errorf("StructureHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSystem, canonical), nil
}

// MustStructureHash is like StructureHash but panics on error.
// Use only in tests or when the system is known to be well formed.
func (s *System) MustStructureHash() string {
	h, err := s.StructureHash()
	if err != nil {
		panic(err)
	}
	return h
}

// Hash computes the content-addressed identity of a Technology's
// structure (name, group, inputs, outputs). Transfer fractions are
// excluded: they are measured behavior, not network shape.
func (t Technology) Hash() (string, error) {
	canonical, err := marshalCanonical(technologyNode(t))
	if err != nil {
		return "", fmt.Errorf("Technology.Hash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTechnology, canonical), nil
}

func technologyNode(t Technology) map[string]any {
	inputs := make([]any, len(t.Inputs))
	for i, p := range t.Inputs {
		inputs[i] = p.Name
	}
	outputs := make([]any, len(t.Outputs))
	for i, p := range t.Outputs {
		outputs[i] = p.Name
	}
	return map[string]any{
		"name":    t.Name,
		"group":   t.Group,
		"inputs":  inputs,
		"outputs": outputs,
	}
}

func compareConnections(a, b Connection) int {
	if c := compareUTF16(a.Product.Name, b.Product.Name); c != 0 {
		return c
	}
	if c := compareUTF16(a.Upstream, b.Upstream); c != 0 {
		return c
	}
	return compareUTF16(a.Downstream, b.Downstream)
}
