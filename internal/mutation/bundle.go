// Package mutation routes per-entity mutation bundles (updates, creates,
// deletes) to entity-specific handlers and persistence calls. Handlers are
// selected from a string-keyed registry; dispatch for one entity is strictly
// ordered deletes → updates → creates so a delete-then-recreate of the same
// natural key never produces a visible duplicate.
package mutation

// Bundle carries one save operation's worth of mutations for a single entity.
// Updates are sparse: each row holds "id" plus only the fields the user
// touched. Creates reference foreign keys by human-readable name; the entity
// handler resolves them. A bundle is ephemeral, built per save and discarded.
type Bundle struct {
	Updates    []map[string]any `json:"updates,omitempty"`
	Creates    []map[string]any `json:"creates,omitempty"`
	DeletedIDs []int64          `json:"deletedIds,omitempty"`
}

// Empty reports whether the bundle carries no work at all.
func (b Bundle) Empty() bool {
	return len(b.Updates) == 0 && len(b.Creates) == 0 && len(b.DeletedIDs) == 0
}

// ActionType derives the audit action for the bundle: any deletions present
// wins over creations, which wins over plain updates.
func (b Bundle) ActionType() string {
	switch {
	case len(b.DeletedIDs) > 0:
		return "DELETE"
	case len(b.Creates) > 0:
		return "CREATE"
	default:
		return "UPDATE"
	}
}

// WithoutSkipped returns a copy of the bundle with the skipped creates
// removed. Audit diffing runs on the returned bundle so rows that never
// landed do not produce change-log entries.
func (b Bundle) WithoutSkipped(skipped []Skipped) Bundle {
	if len(skipped) == 0 || len(b.Creates) == 0 {
		return b
	}
	drop := make(map[int]struct{}, len(skipped))
	for _, s := range skipped {
		drop[s.Index] = struct{}{}
	}
	out := b
	out.Creates = make([]map[string]any, 0, len(b.Creates))
	for i, row := range b.Creates {
		if _, ok := drop[i]; ok {
			continue
		}
		out.Creates = append(out.Creates, row)
	}
	return out
}

// Skipped describes one create that was dropped from a batch because a
// natural-key reference did not resolve. The rest of the batch proceeds;
// callers surface skipped records in the save response.
type Skipped struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}
