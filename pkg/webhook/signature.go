package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// SignatureHeader is the request header LINE puts the body signature in
const SignatureHeader = "X-Line-Signature"

// Sign computes the base64 encoded HMAC-SHA256 of body keyed by the channel secret
func Sign(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature matches body. An empty signature or
// secret is never valid. body must be the exact bytes that were received.
func Verify(body []byte, signature string, secret string) bool {
	return VerifyStrict(body, signature, secret) == nil
}

// VerifyStrict is Verify returning a *SignatureVerificationError describing
// why the signature was rejected.
func VerifyStrict(body []byte, signature string, secret string) error {
	if signature == "" {
		return &SignatureVerificationError{Reason: ReasonMissingSignature}
	}
	if secret == "" {
		return &SignatureVerificationError{Reason: ReasonMissingSecret}
	}

	expected := Sign(body, secret)

	// Timing-safe comparison to prevent timing attacks
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return &SignatureVerificationError{Reason: ReasonMismatch}
	}
	return nil
}
