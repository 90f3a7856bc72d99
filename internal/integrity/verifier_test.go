package integrity

import "testing"

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("test-secret")
	for i := 0; i < ChoiceCount; i++ {
		commitment := v.Hash(i)
		if !v.Verify(i, commitment) {
			t.Fatalf("index %d should verify against its own commitment", i)
		}
		for j := 0; j < ChoiceCount; j++ {
			if j != i && v.Verify(j, commitment) {
				t.Fatalf("index %d must not verify against commitment of %d", j, i)
			}
		}
	}
}

func TestFindCorrectAnswer(t *testing.T) {
	v := NewVerifier("test-secret")
	for i := 0; i < ChoiceCount; i++ {
		if got := v.FindCorrectAnswer(v.Hash(i)); got != i {
			t.Fatalf("expected recovered index %d, got %d", i, got)
		}
	}
	if got := v.FindCorrectAnswer("not-a-commitment"); got != -1 {
		t.Fatalf("unknown commitment should yield -1, got %d", got)
	}
}

func TestSecretChangesCommitment(t *testing.T) {
	a := NewVerifier("secret-a")
	b := NewVerifier("secret-b")
	if a.Hash(0) == b.Hash(0) {
		t.Fatalf("different secrets must produce different commitments")
	}
	if b.Verify(0, a.Hash(0)) {
		t.Fatalf("commitment from another secret must not verify")
	}
}
