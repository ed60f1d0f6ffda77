package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const (
	// ParamSecureHash carries the signature itself and is never part of the
	// signed payload.
	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"
)

// Canonicalize renders params into the gateway's signing form: keys sorted
// byte-wise, empty values and the hash params dropped, each pair encoded as
// key=value and joined with &. Spaces encode as + to match the gateway.
func Canonicalize(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key, value := range params {
		if value == "" {
			continue
		}
		if key == ParamSecureHash || key == ParamSecureHashType {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[key]))
	}
	return b.String()
}

// Sign computes the hex HMAC-SHA512 of the canonical form under secret.
func Sign(secret string, params map[string]string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(Canonicalize(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares it to provided in constant
// time. Comparison is case-insensitive on the hex digest.
func Verify(secret string, params map[string]string, provided string) bool {
	if provided == "" {
		return false
	}
	expected := Sign(secret, params)
	given := strings.ToLower(strings.TrimSpace(provided))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}
