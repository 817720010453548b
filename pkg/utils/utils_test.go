package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestJWT(t *testing.T) {
	secret := "supersecret"
	userID := uuid.New()

	token, err := GenerateToken(userID, "grower@example.com", secret, time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	claims, err := ValidateToken(token, secret)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got, err := claims.UserID()
	if err != nil {
		t.Fatalf("UserID: %v", err)
	}
	if got != userID {
		t.Errorf("Expected UserID %s, got %s", userID, got)
	}
	if claims.Email != "grower@example.com" {
		t.Errorf("Expected email to round trip, got %q", claims.Email)
	}

	_, err = ValidateToken(token, "wrongsecret")
	if err == nil {
		t.Errorf("Expected error with wrong secret")
	}
}

func TestValidateTokenRejectsExpiredToken(t *testing.T) {
	token, err := GenerateToken(uuid.New(), "", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := ValidateToken(token, "secret"); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestValidateTokenRejectsNonUUIDSubject(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := ValidateToken(token, "secret"); err == nil {
		t.Fatalf("expected non-uuid subject to be rejected")
	}
}
