package editing

import (
	"testing"

	"github.com/project-registry/project-registry/internal/db/models"
)

var dscrFields = []models.FieldDescriptor{
	{EntityName: "dscr", FieldKey: "value", DataType: models.TypeNumber},
	{EntityName: "dscr", FieldKey: "as_of_date", DataType: models.TypeDate},
	{EntityName: "dscr", FieldKey: "scenario", DataType: models.TypeDropdown},
}

func newDscrSession() *Session {
	return NewSession("dscr", dscrFields, []models.Record{
		{"id": int64(5), "value": 1.30, "as_of_date": "2024-01-01T00:00:00.000Z", "scenario": "Base Case"},
	})
}

func TestRecordChange_SparseBundle(t *testing.T) {
	s := newDscrSession()
	if err := s.RecordChange(0, "value", 1.45); err != nil {
		t.Fatal(err)
	}

	b := s.BuildBundle()
	if len(b.Updates) != 1 || len(b.Creates) != 0 || len(b.DeletedIDs) != 0 {
		t.Fatalf("unexpected bundle shape: %+v", b)
	}
	u := b.Updates[0]
	if u["id"] != int64(5) || u["value"] != 1.45 {
		t.Errorf("unexpected update row: %v", u)
	}
	if _, present := u["as_of_date"]; present {
		t.Error("untouched field as_of_date leaked into the update payload")
	}
}

func TestRecordChange_LastWriteWins(t *testing.T) {
	s := newDscrSession()
	s.RecordChange(0, "value", 1.40)
	s.RecordChange(0, "value", 1.45)
	if got := s.EffectiveValue(0, "value"); got != 1.45 {
		t.Errorf("EffectiveValue = %v, want 1.45", got)
	}
}

func TestEffectiveValue(t *testing.T) {
	s := newDscrSession()
	if got := s.EffectiveValue(0, "value"); got != 1.30 {
		t.Errorf("untouched field should return original, got %v", got)
	}
	s.RecordChange(0, "value", nil)
	if got := s.EffectiveValue(0, "value"); got != nil {
		t.Errorf("explicit nil change should win over original, got %v", got)
	}
}

func TestAllocate_BlankRowAlwaysSaved(t *testing.T) {
	s := newDscrSession()
	idx := s.Allocate(nil)

	slots := s.Slots()
	if !slots[idx].Provisional() {
		t.Fatalf("allocated slot id %q not provisional", slots[idx].ID)
	}

	// Zero user edits: bundle must still carry the new row as a create.
	b := s.BuildBundle()
	if len(b.Creates) != 1 {
		t.Fatalf("blank provisional row missing from creates: %+v", b)
	}
	if _, hasID := b.Creates[0]["id"]; hasID {
		t.Error("create payload must not carry an id")
	}
}

func TestAllocate_MonotonicIdentifiers(t *testing.T) {
	s := newDscrSession()
	a := s.Allocate(nil)
	b := s.Allocate(nil)
	slots := s.Slots()
	if slots[a].ID == slots[b].ID {
		t.Errorf("allocator minted duplicate ids: %s", slots[a].ID)
	}
}

func TestIsProvisional(t *testing.T) {
	if IsProvisional("5") {
		t.Error("numeric id misclassified as provisional")
	}
	if !IsProvisional("new-1712345678901234") {
		t.Error("minted token not recognised")
	}
}

func TestRelease_PersistedSlotRejected(t *testing.T) {
	s := newDscrSession()
	if err := s.Release(0); err == nil {
		t.Error("releasing a persisted slot must be a caller error")
	}
}

func TestRelease_ProvisionalSlot(t *testing.T) {
	s := newDscrSession()
	idx := s.Allocate(nil)
	if err := s.Release(idx); err != nil {
		t.Fatal(err)
	}
	if b := s.BuildBundle(); len(b.Creates) != 0 {
		t.Errorf("released slot still present in bundle: %+v", b)
	}
}

func TestMarkDeleted(t *testing.T) {
	s := newDscrSession()
	if err := s.MarkDeleted(0); err != nil {
		t.Fatal(err)
	}
	b := s.BuildBundle()
	if len(b.DeletedIDs) != 1 || b.DeletedIDs[0] != 5 {
		t.Errorf("unexpected deletedIds: %v", b.DeletedIDs)
	}

	idx := s.Allocate(nil)
	if err := s.MarkDeleted(idx); err == nil {
		t.Error("deleting a provisional slot must be rejected")
	}
}

func TestReset(t *testing.T) {
	s := newDscrSession()
	s.RecordChange(0, "value", 1.45)
	s.Allocate(nil)
	s.Reset()

	if b := s.BuildBundle(); !b.Empty() {
		t.Errorf("bundle not empty after reset: %+v", b)
	}
	if got := len(s.Slots()); got != 1 {
		t.Errorf("provisional slots should be dropped on reset, have %d slots", got)
	}
}

func TestRemoveSlot_ReindexesChanges(t *testing.T) {
	s := NewSession("dscr", dscrFields, []models.Record{
		{"id": int64(1), "value": 1.0},
		{"id": int64(2), "value": 2.0},
	})
	s.RecordChange(1, "value", 2.5)
	if err := s.MarkDeleted(0); err != nil {
		t.Fatal(err)
	}
	// Slot 1 shifted to index 0; its change must follow.
	if got := s.EffectiveValue(0, "value"); got != 2.5 {
		t.Errorf("change did not follow slot after removal, got %v", got)
	}
}
