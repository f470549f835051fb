// internal/form/definition.go
//
// Studyhub – Forms subsystem: YAML definition loader.
//
// Context
//   Every record kind the client edits (post, blog, progress, profile, and
//   learning plan) is declared once in a YAML file.  The file lists the
//   kind’s fields, their constraints, where to navigate after a successful
//   save, and any post-submit actions.  The defaults ship embedded in the
//   binary under defs/; operators may override a kind by dropping a YAML
//   file with the same `kind` into the directory named by forms.dir.
//
// Workflow
//   •  Structs mirror the YAML schema: FormDef → FieldDef / ActionDef.
//   •  LoadFormDef parses one file and validates structural rules.
//   •  LoadDefaults registers the embedded set; RegisterForms walks override
//      directories and replaces matching kinds.
//   •  Lookup offers safe, read-only access by Kind.
//
// Style
//   Full sentences, two spaces after periods, Oxford commas.
//
//------------------------------------------------------------------------------

package form

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed defs/*.yaml
var defaultDefs embed.FS

// -----------------------------------------------------------------------------
// Kinds, modes, and field types
// -----------------------------------------------------------------------------

// Kind identifies one record kind.  The set is closed; ParseKind rejects
// anything else so handlers never dispatch on free-form strings.
type Kind string

const (
	KindPost         Kind = "post"
	KindBlog         Kind = "blog"
	KindProgress     Kind = "progress"
	KindProfile      Kind = "profile"
	KindLearningPlan Kind = "learningplan"
	KindRegister     Kind = "register"
)

// Kinds lists every supported record kind in display order.
var Kinds = []Kind{KindPost, KindBlog, KindProgress, KindProfile, KindLearningPlan, KindRegister}

// ParseKind converts a URL segment or YAML value into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown record kind %q", s)
}

// Mode selects the create or update flavour of a form.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

func (m Mode) String() string {
	if m == ModeUpdate {
		return "update"
	}
	return "create"
}

// FieldType drives both validation and rendering.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeTextarea FieldType = "textarea"
	TypeEmail    FieldType = "email"
	TypePhone    FieldType = "tel"
	TypeURL      FieldType = "url"
	TypeNumber   FieldType = "number"
	TypeDate     FieldType = "date"
	TypeSelect   FieldType = "select"
	TypePassword FieldType = "password"
	TypeImage    FieldType = "image"  // single optional/required image
	TypeImages   FieldType = "images" // gallery, bounded by MaxFiles
)

// IsFile reports whether values for this type arrive as uploads.
func (t FieldType) IsFile() bool { return t == TypeImage || t == TypeImages }

// TodayDefault is the YAML placeholder for “the reference date”.
const TodayDefault = "$today"

// -----------------------------------------------------------------------------
// Data structures
// -----------------------------------------------------------------------------

// FormDef represents one record kind’s form.
type FormDef struct {
	Kind           Kind        `yaml:"kind"`
	Title          string      `yaml:"title"`           // “Post”, “Blog”, …
	RequiresActor  bool        `yaml:"requires_actor"`  // login precondition
	SuccessRoute   string      `yaml:"success_route"`   // navigation after save
	DeleteRoute    string      `yaml:"delete_route"`    // navigation after delete; defaults to SuccessRoute
	LoginRoute     string      `yaml:"login_route"`     // navigation when unauthenticated
	SuccessMessage string      `yaml:"success_message"` // optional notice text
	DeleteMessage  string      `yaml:"delete_message"`  // optional notice text after delete
	NameField      string      `yaml:"name_field"`      // used in notification entries
	Fields         []FieldDef  `yaml:"fields"`
	Actions        []ActionDef `yaml:"actions"`
}

// FieldDef describes a single input and its rules.
type FieldDef struct {
	Name          string    `yaml:"name"`  // Draft key.  Required.
	Label         string    `yaml:"label"` // Used in messages.  Required.
	Type          FieldType `yaml:"type"`
	Placeholder   string    `yaml:"placeholder"`
	Required      bool      `yaml:"required"`
	MinLength     int       `yaml:"minlength"` // ≥ 0, 0 means unset.
	MaxLength     int       `yaml:"maxlength"` // ≥ 0, 0 means unset.
	Pattern       string    `yaml:"pattern"`
	PatternError  string    `yaml:"pattern_error"`
	RequiredError string    `yaml:"required_error"`
	NotBeforeRef  bool      `yaml:"not_before_today"` // date floor at the reference date
	CreateOnly    bool      `yaml:"create_only"`      // omitted from update forms
	Options       []string  `yaml:"options"`
	MaxFiles      int       `yaml:"max_files"`
	Default       string    `yaml:"default"`

	re *regexp.Regexp
}

// ActionDef configures a best-effort action run after a successful save or
// delete.  Unknown keys stay in Params for the executor.
type ActionDef struct {
	Type   string         `yaml:"type"` // notify, log
	On     string         `yaml:"on"`   // create, update, delete
	Params map[string]any `yaml:",inline"`
}

// FieldsFor returns the fields that participate in mode.
func (fd *FormDef) FieldsFor(m Mode) []FieldDef {
	if m == ModeCreate {
		return fd.Fields
	}
	out := make([]FieldDef, 0, len(fd.Fields))
	for _, f := range fd.Fields {
		if !f.CreateOnly {
			out = append(out, f)
		}
	}
	return out
}

// Field returns the named field definition.
func (fd *FormDef) Field(name string) (FieldDef, bool) {
	for _, f := range fd.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

var (
	registryMu sync.RWMutex
	registry   = make(map[Kind]*FormDef)
)

// Lookup returns the definition for k.  The boolean is false when no
// definition is registered.
func Lookup(k Kind) (*FormDef, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fd, ok := registry[k]
	return fd, ok
}

func register(fd *FormDef) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[fd.Kind] = fd
}

// -----------------------------------------------------------------------------
// Loader API
// -----------------------------------------------------------------------------

// LoadFormDef parses one YAML file and returns a validated FormDef.  It never
// mutates the registry.
func LoadFormDef(path string) (*FormDef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form file %s: %w", path, err)
	}
	return parseFormDef(raw, path)
}

func parseFormDef(raw []byte, path string) (*FormDef, error) {
	var fd FormDef
	if err := yaml.Unmarshal(raw, &fd); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", path, err)
	}
	if err := validateFormDef(&fd, path); err != nil {
		return nil, err
	}
	return &fd, nil
}

// LoadDefaults registers the embedded definitions.  It is idempotent.
func LoadDefaults() error {
	entries, err := fs.ReadDir(defaultDefs, "defs")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		p := "defs/" + e.Name()
		raw, err := defaultDefs.ReadFile(p)
		if err != nil {
			return err
		}
		fd, err := parseFormDef(raw, p)
		if err != nil {
			return err
		}
		register(fd)
	}
	return nil
}

// MustLoadDefaults panics when the embedded set is broken.  Call from main or
// test setup.
func MustLoadDefaults() {
	if err := LoadDefaults(); err != nil {
		panic("form: embedded definitions: " + err.Error())
	}
}

// RegisterForms walks override directories in order and loads every “*.yaml”.
// Later directories win over earlier ones, and all of them win over the
// embedded defaults.  A missing directory is not an error.
func RegisterForms(dirs []string) error {
	if len(dirs) == 0 {
		return errors.New("RegisterForms: no directories provided")
	}
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".yaml") {
				return nil
			}
			fd, err := LoadFormDef(path)
			if err != nil {
				return err // fail fast so issues surface loudly.
			}
			register(fd)
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Validation helpers
// -----------------------------------------------------------------------------

// validateFormDef enforces structural rules that YAML tags cannot express and
// compiles field patterns.
func validateFormDef(fd *FormDef, path string) error {
	if _, err := ParseKind(string(fd.Kind)); err != nil {
		return fmt.Errorf("form definition %s: %w", path, err)
	}
	if len(fd.Fields) == 0 {
		return fmt.Errorf("form definition %s: must have 'fields'", path)
	}
	if fd.LoginRoute == "" {
		fd.LoginRoute = "/login"
	}
	if fd.SuccessRoute == "" {
		fd.SuccessRoute = "/"
	}
	if fd.DeleteRoute == "" {
		fd.DeleteRoute = fd.SuccessRoute
	}

	names := make(map[string]struct{}, len(fd.Fields))
	for i := range fd.Fields {
		f := &fd.Fields[i]
		if err := validateField(f, path); err != nil {
			return err
		}
		if _, dup := names[f.Name]; dup {
			return fmt.Errorf("form %s: duplicate field name '%s'", path, f.Name)
		}
		names[f.Name] = struct{}{}
	}
	if fd.NameField != "" {
		if _, ok := names[fd.NameField]; !ok {
			return fmt.Errorf("form %s: name_field '%s' is not a field", path, fd.NameField)
		}
	}

	knownActions := map[string]bool{"notify": true, "log": true}
	for _, ac := range fd.Actions {
		if !knownActions[ac.Type] {
			return fmt.Errorf("form %s: unrecognized action type '%s'", path, ac.Type)
		}
		switch ac.On {
		case "create", "update", "delete":
		default:
			return fmt.Errorf("form %s: action '%s' has invalid 'on' value %q", path, ac.Type, ac.On)
		}
	}
	return nil
}

// validateField confirms that essential attributes are present and sane.
func validateField(f *FieldDef, path string) error {
	if f.Name == "" {
		return fmt.Errorf("form %s: field missing 'name'", path)
	}
	if f.Label == "" {
		return fmt.Errorf("form %s: field '%s' missing 'label'", path, f.Name)
	}
	switch f.Type {
	case TypeText, TypeTextarea, TypeEmail, TypePhone, TypeURL, TypeNumber,
		TypeDate, TypeSelect, TypePassword, TypeImage, TypeImages:
	case "":
		return fmt.Errorf("form %s: field '%s' missing 'type'", path, f.Name)
	default:
		return fmt.Errorf("form %s: field '%s' has unsupported type %q", path, f.Name, f.Type)
	}

	if f.Pattern != "" {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return fmt.Errorf("form %s: field '%s' invalid regex pattern: %v", path, f.Name, err)
		}
		f.re = re
	}
	if f.MinLength < 0 || f.MaxLength < 0 {
		return fmt.Errorf("form %s: field '%s' minlength/maxlength cannot be negative", path, f.Name)
	}
	if f.MaxLength > 0 && f.MinLength > f.MaxLength {
		return fmt.Errorf("form %s: field '%s' minlength greater than maxlength", path, f.Name)
	}
	if f.MaxFiles < 0 {
		return fmt.Errorf("form %s: field '%s' max_files cannot be negative", path, f.Name)
	}
	if f.NotBeforeRef && f.Type != TypeDate {
		return fmt.Errorf("form %s: field '%s' not_before_today requires type date", path, f.Name)
	}
	return nil
}
