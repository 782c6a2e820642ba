package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the webhook body signature.
const SignatureHeader = "x-signature"

// Sign returns the hex HMAC-SHA512 of payload keyed with the secret.
func (c *Client) Sign(payload []byte) string {
	return sign(c.secretKey, payload)
}

// VerifySignature reports whether signature matches the raw webhook body.
func (c *Client) VerifySignature(payload []byte, signature string) bool {
	if c == nil {
		return false
	}
	return VerifySignature(c.secretKey, payload, signature)
}

// VerifySignature compares in constant time. An empty secret or signature never
// verifies.
func VerifySignature(secret string, payload []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if secret == "" || signature == "" {
		return false
	}
	expected, err := hex.DecodeString(sign(secret, payload))
	if err != nil {
		return false
	}
	provided, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, provided)
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
