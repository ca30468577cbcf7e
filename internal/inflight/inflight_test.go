package inflight

import "testing"

func TestGuard_AcquireRelease(t *testing.T) {
	g := NewGuard()
	key := Key("like", "post_1")

	if !g.Acquire(key) {
		t.Fatalf("first acquire must win")
	}
	if g.Acquire(key) {
		t.Fatalf("second acquire on a busy key must be rejected")
	}

	// A different key is independent.
	if !g.Acquire(Key("like", "post_2")) {
		t.Fatalf("different target must not be blocked")
	}
	// Same target under a different kind is independent too.
	if !g.Acquire(Key("follow", "post_1")) {
		t.Fatalf("different kind must not be blocked")
	}

	g.Release(key)
	if !g.Acquire(key) {
		t.Fatalf("acquire after release must win")
	}
}
