// Package draftstore keeps invoice drafts between requests. Drafts never
// touch stock, so losing one only loses the user's unsaved edits.
package draftstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"almoheat/internal/ledger"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a draft does not exist or has expired.
var ErrNotFound = errors.New("draft not found")

// Store persists drafts by id.
//
// A claim marks a draft as being submitted. Claim is atomic: of several
// concurrent callers exactly one gets true, on one process or across
// replicas sharing Redis. A claim lives as long as a draft would, so a
// submitted draft can never be claimed again.
type Store interface {
	Save(ctx context.Context, draft *ledger.Draft) error
	Get(ctx context.Context, id uuid.UUID) (*ledger.Draft, error)
	Delete(ctx context.Context, id uuid.UUID) error

	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	Claimed(ctx context.Context, id uuid.UUID) (bool, error)
	// Release drops a claim so a failed submission can be retried.
	Release(ctx context.Context, id uuid.UUID) error
}

func encode(draft *ledger.Draft) ([]byte, error) {
	data, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("failed to encode draft %s: %w", draft.ID, err)
	}
	return data, nil
}

func decode(data []byte) (*ledger.Draft, error) {
	var draft ledger.Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}
	if draft.Items == nil {
		draft.Items = []ledger.LineItem{}
	}
	return &draft, nil
}
