// db/repo_resolve.go
package db

import (
	"context"
	"errors"

	"supplyhub/scan"

	"gorm.io/gorm"
)

// ResolvedRef is a confirmed reference with its entity payload attached.
type ResolvedRef struct {
	Kind   string `json:"entityType"`
	ID     string `json:"entityId"`
	Entity any    `json:"entity"`
}

// ResolveRef confirms that a parsed reference names a live entity and
// returns it. Pure lookup; nothing is mutated. A dangling id comes back as
// UnknownIdentifier just like a bad prefix would.
func (r *Repo) ResolveRef(ctx context.Context, ref scan.Ref) (*ResolvedRef, error) {
	unknown := &scan.UnknownIdentifierError{Code: scan.Code(ref.Kind, ref.ID)}

	var entity any
	var err error
	switch ref.Kind {
	case scan.KindSupply:
		entity, err = r.FindSupplyByID(ctx, ref.ID)
	case scan.KindInstance:
		entity, err = r.FindInstanceByID(ctx, ref.ID)
	case scan.KindRequest:
		entity, err = r.FindRequestByID(ctx, ref.ID)
	case scan.KindBatch:
		entity, err = r.FindBatchGroupByID(ctx, ref.ID)
	default:
		return nil, unknown
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, unknown
		}
		return nil, err
	}
	return &ResolvedRef{Kind: ref.Kind, ID: ref.ID, Entity: entity}, nil
}
