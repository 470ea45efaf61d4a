package signer

import (
	"strconv"
	"testing"
	"time"

	"github.com/bitmex-tools/feedrelay/internal/model"
)

func TestSign_Deterministic(t *testing.T) {
	sig1 := Sign("secret", "GET", "/realtime", 1700000000)
	sig2 := Sign("secret", "GET", "/realtime", 1700000000)

	if sig1 != sig2 {
		t.Errorf("Sign not deterministic: %s != %s", sig1, sig2)
	}
	if len(sig1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(sig1))
	}
}

func TestSign_VerbUppercased(t *testing.T) {
	lower := Sign("secret", "get", "/realtime", 1700000000)
	upper := Sign("secret", "GET", "/realtime", 1700000000)

	if lower != upper {
		t.Errorf("verb should be uppercased before signing: %s != %s", lower, upper)
	}
}

func TestSign_InputsChangeSignature(t *testing.T) {
	base := Sign("secret", "GET", "/realtime", 1700000000)

	tests := []struct {
		name string
		sig  string
	}{
		{"different secret", Sign("other", "GET", "/realtime", 1700000000)},
		{"different verb", Sign("secret", "POST", "/realtime", 1700000000)},
		{"different path", Sign("secret", "GET", "/api/v1/order", 1700000000)},
		{"different expiry", Sign("secret", "GET", "/realtime", 1700000001)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.sig == base {
				t.Error("expected signature to change")
			}
		})
	}
}

func TestHeaders(t *testing.T) {
	cred := model.AccountCredential{
		Name:      "acct1",
		APIKey:    "key123",
		APISecret: "secret456",
	}

	before := time.Now().Add(ExpiryWindow).Unix()
	h, err := Headers(cred, "GET", "wss://testnet.bitmex.com/realtime?subscribe=instrument")
	if err != nil {
		t.Fatalf("Headers failed: %v", err)
	}
	after := time.Now().Add(ExpiryWindow).Unix()

	if got := h.Get("api-key"); got != "key123" {
		t.Errorf("api-key = %q, want %q", got, "key123")
	}

	expires, err := strconv.ParseInt(h.Get("api-expires"), 10, 64)
	if err != nil {
		t.Fatalf("api-expires not an integer: %v", err)
	}
	if expires < before || expires > after {
		t.Errorf("api-expires = %d, want between %d and %d", expires, before, after)
	}

	// Signature must be over the path only, query string stripped.
	want := Sign("secret456", "GET", "/realtime", expires)
	if got := h.Get("api-signature"); got != want {
		t.Errorf("api-signature = %q, want %q", got, want)
	}
}

func TestHeaders_FreshExpiryPerCall(t *testing.T) {
	cred := model.AccountCredential{APIKey: "k", APISecret: "s"}

	h1, err := Headers(cred, "GET", "wss://testnet.bitmex.com/realtime")
	if err != nil {
		t.Fatalf("Headers failed: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	h2, err := Headers(cred, "GET", "wss://testnet.bitmex.com/realtime")
	if err != nil {
		t.Fatalf("Headers failed: %v", err)
	}

	if h1.Get("api-expires") == h2.Get("api-expires") {
		t.Error("expected expiry to be recomputed per call")
	}
	if h1.Get("api-signature") == h2.Get("api-signature") {
		t.Error("expected signature to change with expiry")
	}
}

func TestHeaders_BadURL(t *testing.T) {
	cred := model.AccountCredential{APIKey: "k", APISecret: "s"}
	if _, err := Headers(cred, "GET", "://not-a-url"); err == nil {
		t.Error("expected error for malformed URL")
	}
}
