// Package signature verifies that inbound webhook requests originate from a
// configured source system and fall within the replay window.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/damlalper/concierge-ai-backend/internal/logging"
)

// MaxClockSkew is the replay window: requests whose timestamp differs from
// the current time by more than this are rejected regardless of signature.
const MaxClockSkew = 300 * time.Second

// Verifier checks HMAC-SHA256 webhook signatures against per-source secrets.
type Verifier struct {
	secrets map[string]string
	nowFunc func() time.Time
}

// NewVerifier returns a Verifier over the given source-system secret map.
// The map is fixed at construction; sources without a secret fail closed.
func NewVerifier(secrets map[string]string) *Verifier {
	return &Verifier{
		secrets: secrets,
		nowFunc: time.Now,
	}
}

// Verify reports whether signatureHex is a valid HMAC-SHA256 of
// timestamp + payload under the secret configured for sourceSystem.
//
// The payload must be the exact raw bytes received on the wire; signing a
// re-serialized form would break on canonicalization differences.
// Comparison is constant-time. Verify never panics; every malformed input
// is a verification failure.
func (v *Verifier) Verify(payload []byte, signatureHex, timestamp, sourceSystem string) bool {
	secret, ok := v.secrets[sourceSystem]
	if !ok || secret == "" {
		logging.Logger().Warn().
			Str("source_system", sourceSystem).
			Msg("no webhook secret configured for source system")
		return false
	}

	requestTime, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		logging.Logger().Warn().
			Str("source_system", sourceSystem).
			Str("timestamp", timestamp).
			Msg("unparseable webhook timestamp")
		return false
	}

	skew := v.nowFunc().Unix() - requestTime
	if skew > int64(MaxClockSkew.Seconds()) || skew < -int64(MaxClockSkew.Seconds()) {
		logging.Logger().Warn().
			Str("source_system", sourceSystem).
			Int64("skew_seconds", skew).
			Msg("webhook timestamp outside replay window")
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	// hmac.Equal is constant-time and treats length mismatch as inequality.
	return hmac.Equal([]byte(signatureHex), []byte(expected))
}
