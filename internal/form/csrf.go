// internal/form/csrf.go
//
// Studyhub – Forms subsystem: stateless CSRF tokens.
//
// Context
//   Every rendered form embeds a hidden `csrf_token` input and the web layer
//   checks it on POST.  A token is two dot-separated base64url segments:
//
//      <nonce(16) | issuedAt(unix seconds, 8)> . <HMAC-SHA256 of segment one>
//
//   Nothing is stored server-side, so any replica holding the same key can
//   verify.  Tokens expire after TokenMaxAge; a small forward skew is
//   tolerated for clocks that disagree across replicas.
//
// Workflow
//   •  SetCSRFSecret(key)  → once from main.
//   •  GenerateToken()     → token for a render.
//   •  VerifyToken(tok)    → false on any failure.
//
//------------------------------------------------------------------------------

package form

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// TokenMaxAge bounds how long a rendered form stays submittable.
const TokenMaxAge = 2 * time.Hour

const (
	nonceLen  = 16
	clockSkew = time.Minute
)

var b64 = base64.RawURLEncoding

// signer mints and checks tokens with one key.
type signer struct {
	key []byte
	now func() time.Time
}

func (s *signer) mint() (string, error) {
	body := make([]byte, nonceLen+8)
	if _, err := rand.Read(body[:nonceLen]); err != nil {
		return "", err
	}
	binary.BigEndian.PutUint64(body[nonceLen:], uint64(s.now().Unix()))
	payload := b64.EncodeToString(body)
	return payload + "." + b64.EncodeToString(s.sum(payload)), nil
}

func (s *signer) check(tok string) bool {
	payload, sig, ok := strings.Cut(tok, ".")
	if !ok {
		return false
	}
	body, err := b64.DecodeString(payload)
	if err != nil || len(body) != nonceLen+8 {
		return false
	}
	got, err := b64.DecodeString(sig)
	if err != nil || !hmac.Equal(got, s.sum(payload)) {
		return false
	}

	issued := time.Unix(int64(binary.BigEndian.Uint64(body[nonceLen:])), 0)
	age := s.now().Sub(issued)
	return age <= TokenMaxAge && age >= -clockSkew
}

func (s *signer) sum(payload string) []byte {
	m := hmac.New(sha256.New, s.key)
	m.Write([]byte(payload))
	return m.Sum(nil)
}

var active atomic.Pointer[signer]

// SetCSRFSecret installs the HMAC key.  A key shorter than 32 bytes is
// replaced with a random one and a warning is logged.
func SetCSRFSecret(key []byte) {
	if len(key) < 32 {
		zap.S().Warnw("csrf secret too short, using random key", "len", len(key))
		key = randomKey()
	}
	active.Store(&signer{key: append([]byte(nil), key...), now: time.Now})
}

// GenerateToken creates a new CSRF token.  Call once per form render.
func GenerateToken() (string, error) { return current().mint() }

// VerifyToken reports whether tok was minted with the current key and has
// not expired.
func VerifyToken(tok string) bool { return current().check(tok) }

// current returns the installed signer, creating a random-key one on first
// use so tokens still work (until restart) when no secret is configured.
func current() *signer {
	if s := active.Load(); s != nil {
		return s
	}
	s := &signer{key: randomKey(), now: time.Now}
	if active.CompareAndSwap(nil, s) {
		zap.S().Warn("csrf secret not configured, using random key")
		return s
	}
	return active.Load()
}

func randomKey() []byte {
	k := make([]byte, 32)
	_, _ = rand.Read(k)
	return k
}
