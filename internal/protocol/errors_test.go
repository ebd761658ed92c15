package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	for _, code := range []string{"", ErrBadRequest, ErrBlocked, ErrStale, ErrInternal} {
		if !IsKnownCode(code) {
			t.Fatalf("expected %q to be known", code)
		}
	}
	for _, code := range []string{"E_NOPE", "blocked", "E_blocked"} {
		if IsKnownCode(code) {
			t.Fatalf("expected %q to be unknown", code)
		}
	}
}
