package query

import (
	"context"

	"github.com/chorenest/chorenest-engine/internal/domain/credibility"
	"github.com/chorenest/chorenest-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET HISTORY QUERY
// The child's credibility timeline, newest first, paginated.
// ══════════════════════════════════════════════════════════════════════════════

// GetHistoryQuery selects a page of a child's credibility history.
type GetHistoryQuery struct {
	ChildID    shared.ChildID
	Pagination shared.Pagination

	// Kinds filters to the given event kinds; empty means all.
	Kinds []credibility.EventKind
}

// GetHistoryHandler handles the GetHistoryQuery.
type GetHistoryHandler struct {
	deps *Deps
}

// NewGetHistoryHandler creates a new GetHistoryHandler.
func NewGetHistoryHandler(deps *Deps) *GetHistoryHandler {
	return &GetHistoryHandler{deps: deps}
}

// Handle returns the selected page. Events come back newest first; the
// stored history is chronological.
func (h *GetHistoryHandler) Handle(ctx context.Context, q GetHistoryQuery) ([]*credibility.Event, error) {
	if !q.ChildID.IsValid() {
		return nil, shared.ErrInvalidChildID
	}
	profile, _, err := h.deps.loadProfile(ctx, q.ChildID)
	if err != nil {
		return nil, err
	}

	filtered := profile.History
	if len(q.Kinds) > 0 {
		want := make(map[credibility.EventKind]bool, len(q.Kinds))
		for _, k := range q.Kinds {
			want[k] = true
		}
		filtered = nil
		for _, e := range profile.History {
			if want[e.Kind] {
				filtered = append(filtered, e)
			}
		}
	}

	page := q.Pagination.Normalize()
	out := make([]*credibility.Event, 0, page.Limit)
	// Walk backwards: index 0 of the result is the newest event.
	for i := len(filtered) - 1 - page.Offset; i >= 0 && len(out) < page.Limit; i-- {
		out = append(out, filtered[i])
	}
	return out, nil
}
