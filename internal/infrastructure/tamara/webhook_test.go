package tamara

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func hmacHex(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyHMAC(t *testing.T) {
	v := &WebhookVerifier{Secret: "whsec_test"}
	body := []byte(`{"order_id":"T1","event_type":"order_approved"}`)

	if err := v.Verify(body, hmacHex("whsec_test", body)); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	sig := hmacHex("whsec_test", body)
	tampered := []byte(`{"order_id":"T1","event_type":"order_captured"}`)
	err := v.Verify(tampered, sig)
	var ae *AuthenticityError
	if !errors.As(err, &ae) {
		t.Fatalf("tampered body accepted, err = %v", err)
	}

	if err := v.Verify(body, "not-hex!"); err == nil {
		t.Fatal("non-hex signature accepted")
	}
	if err := v.Verify(body, ""); err == nil {
		t.Fatal("empty credential accepted")
	}
}

func TestVerifyBearerToken(t *testing.T) {
	v := &WebhookVerifier{Secret: "whsec_test"}
	body := []byte(`{"event_type":"order_approved"}`)

	claims := jwt.MapClaims{
		"iss": "Tamara",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("whsec_test"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	if err := v.Verify(body, token); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}

	wrong, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	if err := v.Verify(body, wrong); err == nil {
		t.Fatal("token signed with wrong secret accepted")
	}

	// Only HS256 is acceptable even when the signature itself checks out.
	hs384, _ := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString([]byte("whsec_test"))
	if err := v.Verify(body, hs384); err == nil {
		t.Fatal("HS384 token accepted")
	}
}

func TestVerifyNoSecretSkips(t *testing.T) {
	v := &WebhookVerifier{}
	if err := v.Verify([]byte("anything"), "garbage"); err != nil {
		t.Fatalf("dev-mode bypass should accept, got %v", err)
	}
}
