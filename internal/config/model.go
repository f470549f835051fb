// internal/config/model.go
//
// Typed configuration model for studyhub.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                            – dotenv values,
//   • `conf/global.yaml`                         – primary static file,
//   • `STUDYHUB_`-prefixed environment overrides – highest precedence.
//
// Any string of the form `vault:<path>#<key>` is resolved through the Vault
// client *before* unmarshalling, so the model never stores Vault URIs, only
// plain strings.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`
}

//
// Backend API section
//

// API points at the REST backend the forms submit to.
type API struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout"  validate:"gte=0"`
}

//
// Local store section
//

// Store selects the driver for notifications and social state.  The DSN is
// usually a `vault:` reference so credentials stay out of flat files.
type Store struct {
	Driver   string `koanf:"driver"   validate:"omitempty,oneof=badger mysql memory"`
	Path     string `koanf:"path"     validate:"required_if=Driver badger"`
	DSN      string `koanf:"dsn"      validate:"required_if=Driver mysql"`
	Capacity int    `koanf:"capacity" validate:"gte=0"`
}

//
// Forms section
//

// Forms tunes the form registry and validation clock.
type Forms struct {
	// Dir holds YAML definitions that override the embedded defaults.
	Dir string `koanf:"dir"`
	// RefDate pins “today” (YYYY-MM-DD) for date-floor rules; empty means
	// the wall clock.
	RefDate string `koanf:"ref_date" validate:"omitempty,datetime=2006-01-02"`
}

//
// Log section
//

// Log configures the zap logger.  Dir defaults to <root>/logs.
type Log struct {
	Dir   string `koanf:"dir"`
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
	Tee   bool   `koanf:"tee"`
}

//
// Session section
//

// Session holds signing secrets for cookies and CSRF tokens.
type Session struct {
	Secret     string        `koanf:"secret"      validate:"required,min=32"`
	CSRFSecret string        `koanf:"csrf_secret" validate:"omitempty,min=32"`
	TTL        time.Duration `koanf:"ttl"         validate:"gte=0"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // STUDYHUB_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads.
type Config struct {
	HTTP    HTTP    `koanf:"http"`
	API     API     `koanf:"api"`
	Store   Store   `koanf:"store"`
	Forms   Forms   `koanf:"forms"`
	Log     Log     `koanf:"log"`
	Session Session `koanf:"session"`
	Paths   Paths   `koanf:"-"`
}

// RefDate returns the pinned reference date, or the zero time when the wall
// clock should be used.
func (c *Config) RefDate() time.Time {
	if c.Forms.RefDate == "" {
		return time.Time{}
	}
	t, _ := time.ParseInLocation("2006-01-02", c.Forms.RefDate, time.Local)
	return t
}
