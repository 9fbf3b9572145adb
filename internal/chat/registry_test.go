package chat_test

import (
	"errors"
	"testing"

	"github.com/omochice/chat-relay/internal/chat"
)

func newConnection(id chat.ID) *chat.Connection {
	return chat.NewConnection(id, newMockConn("127.0.0.1:1234"))
}

func TestRegistry_Insert(t *testing.T) {
	reg := chat.NewRegistry(4)

	if err := reg.Insert(newConnection(7)); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if got := reg.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
	if _, ok := reg.Get(7); !ok {
		t.Error("Get(7) should find the inserted connection")
	}
}

func TestRegistry_InsertDuplicate(t *testing.T) {
	reg := chat.NewRegistry(4)
	first := newConnection(7)
	if err := reg.Insert(first); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	err := reg.Insert(newConnection(7))
	if !errors.Is(err, chat.ErrDuplicateID) {
		t.Fatalf("Insert() duplicate error = %v, want ErrDuplicateID", err)
	}
	if got, _ := reg.Get(7); got != first {
		t.Error("duplicate insert overwrote the existing entry")
	}
}

func TestRegistry_CapacityFailsClosed(t *testing.T) {
	const capacity = 3
	reg := chat.NewRegistry(capacity)

	existing := make([]*chat.Connection, 0, capacity)
	for i := 0; i < capacity; i++ {
		c := newConnection(chat.ID(100 + i*1000))
		if err := reg.Insert(c); err != nil {
			t.Fatalf("Insert(%d) error = %v", i, err)
		}
		existing = append(existing, c)
	}
	if !reg.Full() {
		t.Fatal("Full() = false at capacity")
	}

	for i := 0; i < 5; i++ {
		err := reg.Insert(newConnection(chat.ID(9_000_000 + i)))
		if !errors.Is(err, chat.ErrRegistryFull) {
			t.Fatalf("Insert() past capacity error = %v, want ErrRegistryFull", err)
		}
	}

	if got := reg.Len(); got != capacity {
		t.Errorf("Len() = %d, want %d", got, capacity)
	}
	for _, c := range existing {
		got, ok := reg.Get(c.ID())
		if !ok || got != c {
			t.Errorf("Get(%s) lost or replaced after rejected inserts", c.ID())
		}
	}
}

func TestRegistry_LargeIDs(t *testing.T) {
	reg := chat.NewRegistry(2)
	ids := []chat.ID{1 << 40, chat.NoID - 1}
	for _, id := range ids {
		if err := reg.Insert(newConnection(id)); err != nil {
			t.Fatalf("Insert(%s) error = %v", id, err)
		}
	}
	for _, id := range ids {
		if _, ok := reg.Get(id); !ok {
			t.Errorf("Get(%s) not found", id)
		}
	}
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	reg := chat.NewRegistry(4)
	for _, id := range []chat.ID{1, 2, 3} {
		if err := reg.Insert(newConnection(id)); err != nil {
			t.Fatalf("Insert(%s) error = %v", id, err)
		}
	}

	if _, ok := reg.Remove(1); !ok {
		t.Fatal("Remove(1) = false, want true")
	}
	if _, ok := reg.Remove(1); ok {
		t.Error("second Remove(1) = true, want false")
	}
	if _, ok := reg.Remove(42); ok {
		t.Error("Remove(42) of absent id = true, want false")
	}

	if got := reg.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
	for _, id := range []chat.ID{2, 3} {
		got, ok := reg.Get(id)
		if !ok || got.ID() != id {
			t.Errorf("Get(%s) after removal of another entry = %v, %v", id, got, ok)
		}
	}
}

func TestRegistry_RemoveFreesCapacity(t *testing.T) {
	reg := chat.NewRegistry(1)
	if err := reg.Insert(newConnection(5)); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	reg.Remove(5)
	if err := reg.Insert(newConnection(6)); err != nil {
		t.Errorf("Insert() after Remove error = %v", err)
	}
}

func TestRegistry_IDReuseHasNoResidue(t *testing.T) {
	hub := chat.NewHub(4)
	old, err := hub.Admit(9, newMockConn("a"))
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	hub.Handle(old, []byte("/nick alice\r\n"))
	if old.Nickname() != "alice" {
		t.Fatalf("Nickname() = %q, want alice", old.Nickname())
	}
	hub.Drop(old)

	reused, err := hub.Admit(9, newMockConn("b"))
	if err != nil {
		t.Fatalf("Admit() of reused id error = %v", err)
	}
	if reused == old {
		t.Fatal("reused id returned the previous Connection")
	}
	if got := reused.Nickname(); got != "anon:9" {
		t.Errorf("Nickname() after id reuse = %q, want anon:9", got)
	}
	if got := reused.State(); got != chat.StateActive {
		t.Errorf("State() after id reuse = %v, want active", got)
	}
	if _, err := reused.Receive(); !errors.Is(err, chat.ErrWouldBlock) {
		t.Errorf("Receive() on fresh connection error = %v, want ErrWouldBlock", err)
	}
}

func TestRegistry_Drain(t *testing.T) {
	reg := chat.NewRegistry(4)
	for _, id := range []chat.ID{1, 2} {
		_ = reg.Insert(newConnection(id))
	}
	if got := len(reg.Drain()); got != 2 {
		t.Errorf("Drain() returned %d connections, want 2", got)
	}
	if reg.Len() != 0 {
		t.Errorf("Len() after Drain = %d, want 0", reg.Len())
	}
	if _, ok := reg.Get(1); ok {
		t.Error("Get(1) after Drain should fail")
	}
}

func TestNewRegistry_DefaultCapacity(t *testing.T) {
	if got := chat.NewRegistry(0).Cap(); got != chat.DefaultCapacity {
		t.Errorf("Cap() = %d, want %d", got, chat.DefaultCapacity)
	}
}
