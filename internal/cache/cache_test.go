package cache

import (
	"testing"
	"time"

	"conti/internal/core"
)

// fakeClock drives the cache's time source so TTL boundaries are exact.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(maxEntries int, ttl time.Duration) (*Store[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	s := New[string](maxEntries, ttl)
	s.now = clock.now
	return s, clock
}

func key(domain core.Domain, owner, sig string) Key {
	return Key{Domain: domain, Owner: owner, Signature: sig}
}

func TestGetReturnsFreshEntry(t *testing.T) {
	s, _ := newTestStore(10, 5*time.Minute)
	k := key(core.DomainExpenses, "alice", "q1")

	s.Set(k, []string{"a", "b"})

	got, ok := s.Get(k)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 2 || got[0] != "a" {
		t.Errorf("got %v, want [a b]", got)
	}
}

func TestGetAtTTLBoundary(t *testing.T) {
	s, clock := newTestStore(10, 5*time.Minute)
	k := key(core.DomainExpenses, "alice", "q1")
	s.Set(k, []string{"a"})

	// Exactly at the TTL the entry is still valid; expiry is strict-greater.
	clock.advance(5 * time.Minute)
	if _, ok := s.Get(k); !ok {
		t.Error("entry at exact TTL should still be served")
	}

	clock.advance(time.Nanosecond)
	if _, ok := s.Get(k); ok {
		t.Error("entry past TTL should be expired")
	}
}

func TestGetRemovesExpiredEntry(t *testing.T) {
	s, clock := newTestStore(10, time.Minute)
	k := key(core.DomainExpenses, "alice", "q1")
	s.Set(k, []string{"a"})

	clock.advance(2 * time.Minute)
	if _, ok := s.Get(k); ok {
		t.Fatal("expected miss on expired entry")
	}
	if s.Len() != 0 {
		t.Errorf("expired entry should be removed on access, len=%d", s.Len())
	}
}

func TestLookupKeepsExpiredEntry(t *testing.T) {
	s, clock := newTestStore(10, time.Minute)
	k := key(core.DomainExpenses, "alice", "q1")
	s.Set(k, []string{"stale"})

	clock.advance(2 * time.Minute)

	payload, fresh, ok := s.Lookup(k)
	if !ok {
		t.Fatal("Lookup should find expired entries")
	}
	if fresh {
		t.Error("expired entry reported fresh")
	}
	if len(payload) != 1 || payload[0] != "stale" {
		t.Errorf("got %v, want the stale payload", payload)
	}
	if s.Len() != 1 {
		t.Error("Lookup must not remove entries")
	}
}

func TestSetEvictsOldestAtCapacity(t *testing.T) {
	s, clock := newTestStore(3, time.Hour)

	k1 := key(core.DomainExpenses, "alice", "q1")
	k2 := key(core.DomainExpenses, "alice", "q2")
	k3 := key(core.DomainTags, "alice", "q3")

	s.Set(k1, []string{"1"})
	clock.advance(time.Second)
	s.Set(k2, []string{"2"})
	clock.advance(time.Second)
	s.Set(k3, []string{"3"})
	clock.advance(time.Second)

	// Inserting a fourth key evicts k1, the oldest.
	s.Set(key(core.DomainBudget, "alice", "q4"), []string{"4"})

	if _, ok := s.Get(k1); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := s.Get(k2); !ok {
		t.Error("second-oldest entry should survive")
	}
	if s.Len() != 3 {
		t.Errorf("len=%d, want 3", s.Len())
	}
}

func TestSetOverwriteNeverEvicts(t *testing.T) {
	s, clock := newTestStore(2, time.Hour)

	k1 := key(core.DomainExpenses, "alice", "q1")
	k2 := key(core.DomainTags, "alice", "q2")
	s.Set(k1, []string{"1"})
	clock.advance(time.Second)
	s.Set(k2, []string{"2"})
	clock.advance(time.Second)

	// Overwriting k1 at capacity must not evict anything.
	s.Set(k1, []string{"1b"})

	if s.Len() != 2 {
		t.Fatalf("len=%d, want 2", s.Len())
	}
	got, ok := s.Get(k1)
	if !ok || got[0] != "1b" {
		t.Errorf("overwrite lost: got %v", got)
	}
	if _, ok := s.Get(k2); !ok {
		t.Error("other entry evicted by an overwrite")
	}
}

func TestSetOverwriteRefreshesTTL(t *testing.T) {
	s, clock := newTestStore(10, time.Minute)
	k := key(core.DomainExpenses, "alice", "q1")
	s.Set(k, []string{"old"})

	clock.advance(50 * time.Second)
	s.Set(k, []string{"new"})
	clock.advance(50 * time.Second)

	// 100s since first Set but only 50s since the overwrite.
	if _, ok := s.Get(k); !ok {
		t.Error("overwrite should restart the TTL clock")
	}
}

func TestInvalidatePrefixIsStructural(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)

	exp := key(core.DomainExpenses, "alice", "q1")
	expOther := key(core.DomainExpenses, "alice", "q2")
	tags := key(core.DomainTags, "alice", "q1")
	bob := key(core.DomainExpenses, "bob", "q1")
	// An owner whose name extends another must not be caught by the prefix.
	alice2 := key(core.DomainExpenses, "alice2", "q1")

	for _, k := range []Key{exp, expOther, tags, bob, alice2} {
		s.Set(k, []string{"x"})
	}

	s.Invalidate(Prefix{Domain: core.DomainExpenses, Owner: "alice"})

	if _, ok := s.Get(exp); ok {
		t.Error("prefixed entry q1 should be gone")
	}
	if _, ok := s.Get(expOther); ok {
		t.Error("prefixed entry q2 should be gone")
	}
	for name, k := range map[string]Key{"tags": tags, "bob": bob, "alice2": alice2} {
		if _, ok := s.Get(k); !ok {
			t.Errorf("entry %s outside the prefix was invalidated", name)
		}
	}
}

func TestPatchRewritesAllPrefixedEntries(t *testing.T) {
	s, clock := newTestStore(10, time.Minute)

	k1 := key(core.DomainGoals, "alice", "q1")
	k2 := key(core.DomainGoals, "alice", "q2")
	other := key(core.DomainGoals, "bob", "q1")
	s.Set(k1, []string{"a", "b"})
	s.Set(k2, []string{"b"})
	s.Set(other, []string{"b"})

	s.Patch(Prefix{Domain: core.DomainGoals, Owner: "alice"}, func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, v := range in {
			if v != "b" {
				out = append(out, v)
			}
		}
		return out
	})

	if got, _ := s.Get(k1); len(got) != 1 || got[0] != "a" {
		t.Errorf("k1 = %v, want [a]", got)
	}
	if got, _ := s.Get(k2); len(got) != 0 {
		t.Errorf("k2 = %v, want empty", got)
	}
	if got, _ := s.Get(other); len(got) != 1 {
		t.Errorf("entry outside prefix was patched: %v", got)
	}

	// Patching must not extend an entry's life.
	clock.advance(2 * time.Minute)
	if _, ok := s.Get(k1); ok {
		t.Error("patched entry should still expire on the original TTL")
	}
}

func TestClear(t *testing.T) {
	s, _ := newTestStore(10, time.Hour)
	s.Set(key(core.DomainExpenses, "alice", "q1"), []string{"a"})
	s.Set(key(core.DomainTags, "bob", "q1"), []string{"b"})

	s.Clear()

	if s.Len() != 0 {
		t.Errorf("len=%d after Clear, want 0", s.Len())
	}
}
