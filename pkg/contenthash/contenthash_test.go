package contenthash_test

import (
	"testing"

	"github.com/educhain-dev/educhain/pkg/contenthash"
)

func TestIdentify_deterministic(t *testing.T) {
	a := contenthash.Identify("Juani", "43474542", "Programa 1")
	b := contenthash.Identify("Juani", "43474542", "Programa 1")
	if a != b {
		t.Errorf("same fields produced different identities: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestIdentify_orderSensitive(t *testing.T) {
	a := contenthash.Identify("x", "y")
	b := contenthash.Identify("y", "x")
	if a == b {
		t.Error("field order must change the identity")
	}
}

func TestIdentify_anyFieldChangesIdentity(t *testing.T) {
	base := []string{"A", "2", "P", "2020-01-01", "D", "T", "I"}
	want := contenthash.Identify(base...)
	for i := range base {
		mutated := make([]string, len(base))
		copy(mutated, base)
		mutated[i] = mutated[i] + "z"
		if got := contenthash.Identify(mutated...); got == want {
			t.Errorf("changing field %d did not change the identity", i)
		}
	}
}

func TestIdentify_knownDigest(t *testing.T) {
	// sha256("a|b") — pinned so the pre-image format cannot silently change.
	const want = "0eab8a0a3380abf4c7d1fb0b43b66aafbb64a4b953e4eb2dccca579461912d0c"
	if got := contenthash.Identify("a", "b"); got != want {
		t.Errorf("Identify(a, b) = %q, want %q", got, want)
	}
}
