// Package editing implements the in-memory edit session for one entity tab:
// a sparse change set recording only the fields the user actually touched, and
// a provisional record allocator that mints client-side identities for rows
// created before a save round-trip. The session is an explicit object passed
// into each operation; it is owned by one editing flow and never outlives it.
package editing

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/project-registry/project-registry/internal/db/models"
	"github.com/project-registry/project-registry/internal/mutation"
)

// provisionalPrefix tags identifiers minted by the allocator. Database ids are
// numeric, so the tag can never collide with a persisted identity.
const provisionalPrefix = "new-"

// Slot represents one row being edited: its identity (persisted numeric id
// rendered as a string, or a provisional token) and the original field values
// read from the persisted record. Edits live in the session's change set, not
// in the slot.
type Slot struct {
	ID       string
	Original map[string]any
}

// Provisional reports whether the slot's identity was minted client-side.
func (s Slot) Provisional() bool { return IsProvisional(s.ID) }

// IsProvisional reports whether an identifier was minted by an allocator
// rather than assigned by the database.
func IsProvisional(id string) bool { return strings.HasPrefix(id, provisionalPrefix) }

// Session tracks the change set and record slots for one entity while a form
// is in edit mode. Methods are safe for the single editing flow that owns the
// session; the mutex guards against sloppy concurrent UI callbacks only.
type Session struct {
	mu      sync.Mutex
	entity  string
	fields  []models.FieldDescriptor
	slots   []Slot
	changes map[int]map[string]any
	deleted []int64
	lastTok int64
}

// NewSession opens an edit session over the currently persisted records.
func NewSession(entityName string, fields []models.FieldDescriptor, existing []models.Record) *Session {
	s := &Session{
		entity:  entityName,
		fields:  fields,
		changes: make(map[int]map[string]any),
	}
	for _, rec := range existing {
		orig := make(map[string]any, len(fields))
		for _, fd := range fields {
			orig[fd.FieldKey] = rec[fd.FieldKey]
		}
		s.slots = append(s.slots, Slot{ID: strconv.FormatInt(rec.ID(), 10), Original: orig})
	}
	return s
}

// Slots returns the active record slots in display order.
func (s *Session) Slots() []Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Slot, len(s.slots))
	copy(out, s.slots)
	return out
}

// RecordChange stores a coerced value for (slot, field). Last write wins
// within the session; recording the same value twice is harmless.
func (s *Session) RecordChange(slotIndex int, fieldKey string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slotIndex < 0 || slotIndex >= len(s.slots) {
		return fmt.Errorf("slot %d out of range", slotIndex)
	}
	row, ok := s.changes[slotIndex]
	if !ok {
		row = make(map[string]any)
		s.changes[slotIndex] = row
	}
	row[fieldKey] = value
	return nil
}

// EffectiveValue returns the change-set value for (slot, field) when one was
// recorded — including an explicit nil — and the slot's original value
// otherwise.
func (s *Session) EffectiveValue(slotIndex int, fieldKey string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.changes[slotIndex]; ok {
		if v, touched := row[fieldKey]; touched {
			return v
		}
	}
	if slotIndex >= 0 && slotIndex < len(s.slots) {
		return s.slots[slotIndex].Original[fieldKey]
	}
	return nil
}

// Reset clears every recorded change and pending deletion. Called on cancel
// and after a successful save.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = make(map[int]map[string]any)
	s.deleted = nil
	kept := s.slots[:0]
	for _, slot := range s.slots {
		if !slot.Provisional() {
			kept = append(kept, slot)
		}
	}
	s.slots = kept
}

// Allocate appends a slot with a provisional identifier. Every catalog field
// is pre-seeded to its default (usually nil) in the change set, so the new
// row is included in the next save even if the user edits nothing — a blank
// row, once added, is always persisted.
func (s *Session) Allocate(entityDefaults map[string]any) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok := time.Now().UnixNano()
	if tok <= s.lastTok {
		tok = s.lastTok + 1
	}
	s.lastTok = tok

	orig := make(map[string]any, len(s.fields))
	seed := make(map[string]any, len(s.fields))
	for _, fd := range s.fields {
		orig[fd.FieldKey] = nil
		seed[fd.FieldKey] = entityDefaults[fd.FieldKey]
	}
	s.slots = append(s.slots, Slot{
		ID:       provisionalPrefix + strconv.FormatInt(tok, 10),
		Original: orig,
	})
	idx := len(s.slots) - 1
	s.changes[idx] = seed
	return idx
}

// Release removes a provisional slot before save. Releasing a persisted slot
// is a caller error: persisted rows are removed through MarkDeleted, and a
// slot that has already been submitted cannot be recalled.
func (s *Session) Release(slotIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slotIndex < 0 || slotIndex >= len(s.slots) {
		return fmt.Errorf("slot %d out of range", slotIndex)
	}
	if !s.slots[slotIndex].Provisional() {
		return fmt.Errorf("slot %d holds persisted id %s: cannot release a persisted record",
			slotIndex, s.slots[slotIndex].ID)
	}
	s.removeSlot(slotIndex)
	return nil
}

// MarkDeleted queues a persisted slot's id for deletion on the next save and
// removes the slot from the active list.
func (s *Session) MarkDeleted(slotIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slotIndex < 0 || slotIndex >= len(s.slots) {
		return fmt.Errorf("slot %d out of range", slotIndex)
	}
	slot := s.slots[slotIndex]
	if slot.Provisional() {
		return fmt.Errorf("slot %d is provisional: release it instead of deleting", slotIndex)
	}
	id, err := strconv.ParseInt(slot.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("slot %d has malformed id %q", slotIndex, slot.ID)
	}
	s.deleted = append(s.deleted, id)
	s.removeSlot(slotIndex)
	return nil
}

// removeSlot drops a slot and re-indexes the change set. Caller holds the lock.
func (s *Session) removeSlot(slotIndex int) {
	s.slots = append(s.slots[:slotIndex], s.slots[slotIndex+1:]...)
	delete(s.changes, slotIndex)
	shifted := make(map[int]map[string]any, len(s.changes))
	for idx, row := range s.changes {
		if idx > slotIndex {
			shifted[idx-1] = row
		} else {
			shifted[idx] = row
		}
	}
	s.changes = shifted
}

// BuildBundle assembles the save payload: touched persisted slots become
// sparse updates carrying only changed fields, provisional slots become
// creates, and queued deletions become deletedIds. Untouched fields never
// appear in the payload.
func (s *Session) BuildBundle() mutation.Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b mutation.Bundle
	b.DeletedIDs = append(b.DeletedIDs, s.deleted...)

	for idx, slot := range s.slots {
		row, touched := s.changes[idx]
		if !touched || len(row) == 0 {
			continue
		}
		payload := make(map[string]any, len(row)+1)
		for k, v := range row {
			payload[k] = v
		}
		if slot.Provisional() {
			b.Creates = append(b.Creates, payload)
			continue
		}
		id, err := strconv.ParseInt(slot.ID, 10, 64)
		if err != nil {
			continue
		}
		payload["id"] = id
		b.Updates = append(b.Updates, payload)
	}
	return b
}

// Entity returns the entity name the session edits.
func (s *Session) Entity() string { return s.entity }
