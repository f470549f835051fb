// internal/session/session.go
//
// Signed-cookie sessions and one-shot flash notices.
//
// Context
//   The backend returns an opaque user id on login.  Manager stores that id
//   in a cookie named “studyhub_session” as
//
//       base64url(id) "." expiry-unix "." base64url(HMAC-SHA256)
//
//   so a client cannot forge or extend its own session.  Middleware puts the
//   verified id on the request context via auth.WithActor.
//
//   Flash notices use the same signing scheme in “studyhub_flash” so the
//   success notice survives the post-submit 303 redirect.  PopFlash clears
//   the cookie after reading it.
//
// Style
//   Two-space sentence spacing, Oxford comma, terse inline notes.
//
//------------------------------------------------------------------------------

package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yanizio/studyhub/internal/auth"
)

const (
	cookieName = "studyhub_session"
	flashName  = "studyhub_flash"

	// DefaultTTL is how long a login lasts.
	DefaultTTL = 14 * 24 * time.Hour
	flashTTL   = time.Minute
)

var errBadCookie = errors.New("session: invalid cookie")

// Flash is a notice carried across one redirect.
type Flash struct {
	Level string `json:"level"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Manager signs and verifies session cookies.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New returns a Manager.  secret must be at least 32 bytes.
func New(secret string, ttl time.Duration) (*Manager, error) {
	if len(secret) < 32 {
		return nil, errors.New("session: secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

/*──────────────────────────── login state ─────────────────────────────────*/

// Login sets the session cookie for actorID.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, actorID string) {
	exp := m.now().Add(m.ttl)
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    m.sign(actorID, exp),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
}

// Logout clears the session cookie.
func (m *Manager) Logout(w http.ResponseWriter) {
	clearCookie(w, cookieName)
}

// ActorID returns the verified id from r, if any.
func (m *Manager) ActorID(r *http.Request) (string, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return "", false
	}
	id, err := m.verify(c.Value)
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

// Middleware attaches the verified actor to every request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := m.ActorID(r); ok {
			r = r.WithContext(auth.WithActor(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

/*──────────────────────────── flash notices ───────────────────────────────*/

// SetFlash stores f for the next request.
func (m *Manager) SetFlash(w http.ResponseWriter, f Flash) {
	raw, _ := json.Marshal(f)
	http.SetCookie(w, &http.Cookie{
		Name:     flashName,
		Value:    m.sign(string(raw), m.now().Add(flashTTL)),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(flashTTL.Seconds()),
	})
}

// PopFlash returns and clears the pending flash.
func (m *Manager) PopFlash(w http.ResponseWriter, r *http.Request) (Flash, bool) {
	c, err := r.Cookie(flashName)
	if err != nil {
		return Flash{}, false
	}
	clearCookie(w, flashName)
	payload, err := m.verify(c.Value)
	if err != nil {
		return Flash{}, false
	}
	var f Flash
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return Flash{}, false
	}
	return f, true
}

/*──────────────────────────── signing ─────────────────────────────────────*/

func (m *Manager) mac(payload string) []byte {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(payload))
	return h.Sum(nil)
}

func (m *Manager) sign(value string, exp time.Time) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(value)) + "." +
		strconv.FormatInt(exp.Unix(), 10)
	return payload + "." + base64.RawURLEncoding.EncodeToString(m.mac(payload))
}

func (m *Manager) verify(cookie string) (string, error) {
	i := strings.LastIndexByte(cookie, '.')
	if i < 0 {
		return "", errBadCookie
	}
	payload, sig := cookie[:i], cookie[i+1:]
	want, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(want, m.mac(payload)) {
		return "", errBadCookie
	}

	enc, expStr, ok := strings.Cut(payload, ".")
	if !ok {
		return "", errBadCookie
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil || m.now().Unix() > exp {
		return "", errBadCookie
	}
	value, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return "", errBadCookie
	}
	return string(value), nil
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
