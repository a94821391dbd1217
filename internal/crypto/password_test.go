package crypto

import "testing"

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if err := CheckPassword(hash, "secret"); err != nil {
		t.Fatalf("expected password to match")
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatalf("expected password mismatch")
	}
}

func TestResetTokenHashing(t *testing.T) {
	token, err := NewResetToken()
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	if HashToken(token) == token {
		t.Fatalf("expected hash to differ from token")
	}
	if HashToken(token) != HashToken(token) {
		t.Fatalf("expected hash to be deterministic")
	}
}
