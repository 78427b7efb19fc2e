package auth

import (
	"testing"
	"time"
)

func TestTokenRoundtrip(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}

	token, err := CreateToken("tech-1", cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	claims, err := VerifyToken(token, cfg)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.TechnicianID != "tech-1" {
		t.Fatalf("expected tech-1, got %q", claims.TechnicianID)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	token, err := CreateToken("tech-1", cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	if _, err := VerifyToken(token, TokenConfig{Secret: "other"}); err == nil {
		t.Fatalf("expected error for wrong secret")
	}
}

func TestVerifyToken_Expired(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: -time.Minute, Issuer: "test"}
	token, err := CreateToken("tech-1", TokenConfig{Secret: "secret", Expiry: time.Nanosecond, Issuer: "test"})
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := VerifyToken(token, cfg); err == nil {
		t.Fatalf("expected error for expired token")
	}
}

func TestCreateToken_Validation(t *testing.T) {
	if _, err := CreateToken("", TokenConfig{Secret: "s", Expiry: time.Hour}); err == nil {
		t.Fatalf("expected error for missing technician id")
	}
	if _, err := CreateToken("tech-1", TokenConfig{Expiry: time.Hour}); err == nil {
		t.Fatalf("expected error for missing secret")
	}
	if _, err := CreateToken("tech-1", TokenConfig{Secret: "s"}); err == nil {
		t.Fatalf("expected error for invalid expiry")
	}
}
