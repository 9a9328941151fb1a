package paytabs

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// ComputeSignature recomputes the callback signature: drop the signature
// field itself, sort the remaining keys alphabetically, join them as
// key=value pairs with "&", and HMAC-SHA256 the result with the server key
// (hex digest). This is the form PayTabs documents for hosted-page
// callbacks.
func ComputeSignature(fields map[string]string, serverKey string) string {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if k == "signature" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}

	mac := hmac.New(sha256.New, []byte(serverKey))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the signature field of a callback payload in
// constant time.
func VerifySignature(fields map[string]string, serverKey string) bool {
	provided := fields["signature"]
	if provided == "" || serverKey == "" {
		return false
	}
	expected := ComputeSignature(fields, serverKey)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}
