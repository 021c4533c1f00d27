package store

import (
	"context"
	"testing"
	"time"
)

// =============================================================================
// MemoryStore Tests
// =============================================================================

func TestMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	defer st.Close()

	t.Run("missing key returns ErrNotFound", func(t *testing.T) {
		_, err := st.Get(ctx, "nope")
		if err != ErrNotFound {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		if err := st.Set(ctx, "k1", []byte("value"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := st.Get(ctx, "k1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "value" {
			t.Errorf("value = %q, want %q", got, "value")
		}
	})

	t.Run("overwrite wins", func(t *testing.T) {
		st.Set(ctx, "k2", []byte("old"), time.Minute)
		st.Set(ctx, "k2", []byte("new"), time.Minute)

		got, _ := st.Get(ctx, "k2")
		if string(got) != "new" {
			t.Errorf("value = %q, want %q", got, "new")
		}
	})

	t.Run("returned value is a copy", func(t *testing.T) {
		st.Set(ctx, "k3", []byte("abc"), time.Minute)
		got, _ := st.Get(ctx, "k3")
		got[0] = 'X'

		again, _ := st.Get(ctx, "k3")
		if string(again) != "abc" {
			t.Errorf("stored value mutated: %q", again)
		}
	})

	t.Run("zero TTL never expires", func(t *testing.T) {
		st.Set(ctx, "k4", []byte("forever"), 0)
		if _, err := st.Get(ctx, "k4"); err != nil {
			t.Errorf("Get failed: %v", err)
		}
	})
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	defer st.Close()

	st.Set(ctx, "short", []byte("v"), 10*time.Millisecond)

	if _, err := st.Get(ctx, "short"); err != nil {
		t.Fatalf("entry should be present before expiry: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if _, err := st.Get(ctx, "short"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound after expiry", err)
	}
}

func TestMemoryStore_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	defer st.Close()

	st.Set(ctx, "graph:query_result:t1:a", []byte("1"), 0)
	st.Set(ctx, "graph:query_result:t1:b", []byte("2"), 0)
	st.Set(ctx, "graph:query_result:t2:a", []byte("3"), 0)

	n, err := st.DeletePrefix(ctx, "graph:query_result:t1:")
	if err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}

	if _, err := st.Get(ctx, "graph:query_result:t1:a"); err != ErrNotFound {
		t.Error("tenant t1 entry should be gone")
	}
	if _, err := st.Get(ctx, "graph:query_result:t2:a"); err != nil {
		t.Error("tenant t2 entry should survive")
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	st.Close()

	if err := st.Set(ctx, "k", []byte("v"), 0); err != ErrClosed {
		t.Errorf("Set err = %v, want ErrClosed", err)
	}
	if _, err := st.Get(ctx, "k"); err != ErrClosed {
		t.Errorf("Get err = %v, want ErrClosed", err)
	}
}

// =============================================================================
// BadgerStore Tests
// =============================================================================

func TestBadgerStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := NewBadgerStoreInMemory()
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer st.Close()

	if err := st.Set(ctx, "k1", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := st.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("value = %q, want %q", got, "payload")
	}

	if _, err := st.Get(ctx, "missing"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBadgerStore_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	st, err := NewBadgerStoreInMemory()
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer st.Close()

	st.Set(ctx, "p:t1:a", []byte("1"), 0)
	st.Set(ctx, "p:t1:b", []byte("2"), 0)
	st.Set(ctx, "p:t2:c", []byte("3"), 0)

	n, err := st.DeletePrefix(ctx, "p:t1:")
	if err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}

	if _, err := st.Get(ctx, "p:t2:c"); err != nil {
		t.Error("unrelated key should survive prefix delete")
	}
}
