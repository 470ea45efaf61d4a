// Package signer produces the time-boxed authentication headers the
// BitMEX API requires: api-key, api-expires, and api-signature.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bitmex-tools/feedrelay/internal/model"
)

// ExpiryWindow is how far in the future api-expires is set.
const ExpiryWindow = 5 * time.Minute

// Sign computes the hex-encoded HMAC-SHA256 signature for a request.
// Message format: UPPER(verb) + path + expires, where path is the URL
// path component only (no query string) and expires is Unix seconds.
func Sign(secret, verb, path string, expires int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.ToUpper(verb)))
	mac.Write([]byte(path))
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Headers builds the three auth headers for a request with the given
// verb against rawURL. The expiry is recomputed on every call.
func Headers(cred model.AccountCredential, verb, rawURL string) (http.Header, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	expires := time.Now().Add(ExpiryWindow).Unix()

	h := http.Header{}
	h.Set("api-key", cred.APIKey)
	h.Set("api-expires", strconv.FormatInt(expires, 10))
	h.Set("api-signature", Sign(cred.APISecret, verb, u.EscapedPath(), expires))
	return h, nil
}

// WebSocketHeaders builds auth headers for a streaming connection.
// WebSocket upgrades are GET requests.
func WebSocketHeaders(cred model.AccountCredential, rawURL string) (http.Header, error) {
	return Headers(cred, http.MethodGet, rawURL)
}
