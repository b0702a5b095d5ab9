package bus

import (
	"fmt"
	"testing"
)

func TestDedupeCache_CheckAndRecord(t *testing.T) {
	d := NewDedupeCache(10)

	if d.CheckAndRecord("post_1") {
		t.Fatal("first delivery reported as duplicate")
	}
	if !d.CheckAndRecord("post_1") {
		t.Fatal("redelivery not reported as duplicate")
	}
	if !d.Seen("post_1") {
		t.Error("Seen(post_1) = false after record")
	}
	if d.Seen("post_2") {
		t.Error("Seen(post_2) = true for unknown id")
	}
}

func TestDedupeCache_EvictsOldestOnOverflow(t *testing.T) {
	d := NewDedupeCache(3)
	for i := 1; i <= 4; i++ {
		d.Record(fmt.Sprintf("id%d", i))
	}

	if d.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", d.Len())
	}
	if d.Seen("id1") {
		t.Error("oldest id should have been evicted")
	}
	for _, id := range []string{"id2", "id3", "id4"} {
		if !d.Seen(id) {
			t.Errorf("%s should still be present", id)
		}
	}
}

func TestDedupeCache_RecordExistingKeepsOrder(t *testing.T) {
	d := NewDedupeCache(2)
	d.Record("a")
	d.Record("b")
	d.Record("a") // no-op, "a" stays oldest
	d.Record("c")

	if d.Seen("a") {
		t.Error("re-recording must not refresh position")
	}
	if !d.Seen("b") || !d.Seen("c") {
		t.Error("b and c should be present")
	}
}

func TestNewDedupeCache_DefaultCapacity(t *testing.T) {
	d := NewDedupeCache(0)
	if d.capacity != DefaultDedupeCapacity {
		t.Errorf("capacity = %d, want %d", d.capacity, DefaultDedupeCapacity)
	}
}

func TestInboundEvent_DisplayName(t *testing.T) {
	if got := (InboundEvent{UserID: "user_1"}).DisplayName(); got != "user_1" {
		t.Errorf("DisplayName() = %q, want user_1", got)
	}
	if got := (InboundEvent{UserID: "user_1", UserName: "Ana"}).DisplayName(); got != "Ana" {
		t.Errorf("DisplayName() = %q, want Ana", got)
	}
}
