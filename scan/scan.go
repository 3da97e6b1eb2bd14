// Package scan turns opaque scanned codes into typed entity references.
// Parsing is pure; existence is the repo's problem.
package scan

import (
	"fmt"
	"strings"
)

// Entity kinds a code can resolve to.
const (
	KindSupply   = "supply"
	KindInstance = "instance"
	KindRequest  = "request"
	KindBatch    = "batch"
)

// Ref is a parsed identifier reference.
type Ref struct {
	Kind string `json:"entityType"`
	ID   string `json:"entityId"`
}

type UnknownIdentifierError struct {
	Code string
}

func (e *UnknownIdentifierError) Error() string {
	return fmt.Sprintf("unknown identifier %q", e.Code)
}

var prefixes = map[string]string{
	"SUPPLY-":   KindSupply,
	"INSTANCE-": KindInstance,
	"REQUEST-":  KindRequest,
	"BATCH-":    KindBatch,
}

// Parse maps a scanned code to a Ref by its fixed prefix. It never touches
// storage; a well-formed code may still name a nonexistent entity.
func Parse(code string) (Ref, error) {
	trimmed := strings.TrimSpace(code)
	for prefix, kind := range prefixes {
		if !strings.HasPrefix(trimmed, prefix) {
			continue
		}
		id := trimmed[len(prefix):]
		if id == "" {
			return Ref{}, &UnknownIdentifierError{Code: code}
		}
		return Ref{Kind: kind, ID: id}, nil
	}
	return Ref{}, &UnknownIdentifierError{Code: code}
}

// Code renders the canonical code for an entity, the inverse of Parse.
func Code(kind, id string) string {
	for prefix, k := range prefixes {
		if k == kind {
			return prefix + id
		}
	}
	return ""
}
