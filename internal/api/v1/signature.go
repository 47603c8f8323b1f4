package v1

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/maildesk-io/maildesk-ce/internal/service"
)

// SignatureHeader carries the provider's HMAC of the raw body.
const SignatureHeader = "x-webhook-signature"

// SignatureVerifier validates the shared-secret HMAC on inbound
// deliveries. An empty secret disables verification entirely; that is
// an explicit operator opt-out, warned about at startup.
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier builds a verifier for the configured secret.
func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured.
func (v *SignatureVerifier) Enabled() bool {
	return len(v.secret) > 0
}

// Verify checks the hex HMAC-SHA256 of the exact raw body bytes in
// constant time.
func (v *SignatureVerifier) Verify(body []byte, signature string) error {
	if !v.Enabled() {
		return nil
	}
	if signature == "" {
		return fmt.Errorf("%w: missing webhook signature", service.ErrUnauthorized)
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: invalid webhook signature", service.ErrUnauthorized)
	}
	return nil
}
