package auth

import (
	"strings"
	"testing"
)

func TestHashPasswordAndCheckPasswordBcrypt(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if !CheckPassword("s3cret-pass", hash) {
		t.Fatalf("expected bcrypt password check to pass")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected bcrypt password check to fail")
	}
	if CheckPassword("s3cret-pass", "") {
		t.Fatalf("expected empty hash to fail")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("motdepasse"); err != nil {
		t.Fatalf("expected valid password, got: %v", err)
	}
	if err := ValidatePassword("court"); !IsPolicyError(err) {
		t.Fatalf("expected short password to fail, got %v", err)
	}
	if err := ValidatePassword("éééééééé"); err != nil {
		t.Fatalf("expected 8 multibyte characters to pass, got %v", err)
	}
	if err := ValidatePassword(strings.Repeat("a", 73)); !IsPolicyError(err) {
		t.Fatalf("expected long password to fail, got %v", err)
	}
}
