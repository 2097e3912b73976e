package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
)

func signUserToken(userID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(userID))
	return fmt.Sprintf("%s.%s", userID, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyUserTokenRoundTrip(t *testing.T) {
	token := signUserToken("user-42", "secret")

	userID, ok := verifyUserToken(token, "secret")
	if !ok {
		t.Fatal("expected valid token")
	}
	if userID != "user-42" {
		t.Fatalf("unexpected user: %s", userID)
	}
}

func TestVerifyUserTokenKeepsDotsInUserID(t *testing.T) {
	// User IDs may themselves contain dots; the signature is everything
	// after the last one.
	token := signUserToken("auth0|user.name", "secret")

	userID, ok := verifyUserToken(token, "secret")
	if !ok {
		t.Fatal("expected valid token")
	}
	if userID != "auth0|user.name" {
		t.Fatalf("unexpected user: %s", userID)
	}
}

func TestVerifyUserTokenRejectsTampering(t *testing.T) {
	token := signUserToken("user-42", "secret")

	cases := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", token, "other-secret"},
		{"forged user", "user-43." + token[len("user-42."):], "secret"},
		{"no separator", "user-42", "secret"},
		{"empty signature", "user-42.", "secret"},
		{"empty user", ".deadbeef", "secret"},
		{"empty secret", token, ""},
	}

	for _, tc := range cases {
		if _, ok := verifyUserToken(tc.token, tc.secret); ok {
			t.Fatalf("%s: expected rejection", tc.name)
		}
	}
}
