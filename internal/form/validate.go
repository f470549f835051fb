// internal/form/validate.go
//
// Studyhub – Forms subsystem: field-level and whole-form validation.
//
// Context
//   Validation is a pure function of a FieldDef, the submitted value, and a
//   ValidationContext.  The context carries the reference date used by
//   “not before today” rules; it is fixed when the controller is created so
//   a form open across midnight keeps one floor for its whole lifetime.
//
// Workflow
//   •  ValidateField checks one text-like value and returns a user-facing
//      message, or "" when valid.
//   •  ValidateFiles checks an upload field: presence, MIME prefix, size,
//      and count.
//   •  ValidateDraft runs both over every field the mode includes and returns
//      a Result.  Result.Valid gates submission.
//
// Notes
//   Rule order per field is required → format/pattern → length → range.
//   Only the first failing rule is reported.  Option membership for selects
//   is left to the input surface and is not re-checked here.
//
//------------------------------------------------------------------------------

package form

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the wire and input format for date fields.
const DateLayout = "2006-01-02"

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	urlRe   = regexp.MustCompile(`^(https?://)?([\w-]+\.)+[\w-]+(/[\w\-./?%&=+#:~]*)?$`)
)

// -----------------------------------------------------------------------------
// Context and results
// -----------------------------------------------------------------------------

// ValidationContext carries values validation may depend on but must never
// read from ambient state.
type ValidationContext struct {
	RefDate time.Time
}

// refDay truncates RefDate to a calendar day in its own location and returns
// it as UTC midnight so it compares cleanly with parsed input dates.
func (v ValidationContext) refDay() time.Time {
	y, m, d := v.RefDate.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today renders the reference date in DateLayout.
func (v ValidationContext) Today() string { return v.refDay().Format(DateLayout) }

// Result maps field names to messages.  An empty message means valid.
type Result map[string]string

// Valid reports whether every entry is empty.
func (r Result) Valid() bool {
	for _, msg := range r {
		if msg != "" {
			return false
		}
	}
	return true
}

// Fields returns the names that carry an error, sorted.
func (r Result) Fields() []string {
	var out []string
	for name, msg := range r {
		if msg != "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// ErrorField describes a single validation failure so templates can render a
// field-level message.
type ErrorField struct {
	Name    string
	Message string
}

// List flattens r into ErrorFields ordered by field name.
func (r Result) List() []ErrorField {
	names := r.Fields()
	out := make([]ErrorField, 0, len(names))
	for _, n := range names {
		out = append(out, ErrorField{Name: n, Message: r[n]})
	}
	return out
}

// -----------------------------------------------------------------------------
// Text-like fields
// -----------------------------------------------------------------------------

// ValidateField returns the message for value under def, or "" when valid.
// File fields are handled by ValidateFiles and always pass here.
func ValidateField(def FieldDef, value string, vctx ValidationContext) string {
	if def.Type.IsFile() {
		return ""
	}
	val := strings.TrimSpace(value)

	if val == "" {
		if def.Required {
			return requiredMsg(def)
		}
		return ""
	}

	switch def.Type {
	case TypeEmail:
		if !emailRe.MatchString(val) {
			return "Please enter a valid email address"
		}
	case TypeURL:
		if !urlRe.MatchString(val) {
			return "Please enter a valid URL"
		}
	case TypeNumber:
		n, err := strconv.ParseFloat(val, 64)
		if err != nil || n <= 0 || math.IsInf(n, 0) || math.IsNaN(n) {
			return def.Label + " must be a positive number"
		}
	case TypeDate:
		d, err := time.Parse(DateLayout, val)
		if err != nil {
			return def.Label + " must be a valid date (YYYY-MM-DD)"
		}
		if def.NotBeforeRef && d.Before(vctx.refDay()) {
			return def.Label + " date must be today or later"
		}
	}

	if re := def.pattern(); re != nil && !re.MatchString(val) {
		if def.PatternError != "" {
			return def.PatternError
		}
		return def.Label + " has an invalid format"
	}

	return lengthMsg(def, val)
}

// pattern returns the compiled pattern.  Definitions built in code rather than
// loaded from YAML compile lazily.
func (f *FieldDef) pattern() *regexp.Regexp {
	if f.Pattern == "" {
		return nil
	}
	if f.re == nil {
		f.re = regexp.MustCompile(f.Pattern)
	}
	return f.re
}

func lengthMsg(def FieldDef, val string) string {
	n := utf8.RuneCountInString(val)
	min, max := def.MinLength, def.MaxLength
	switch {
	case min > 0 && max > 0 && (n < min || n > max):
		return fmt.Sprintf("%s must be between %d and %d characters", def.Label, min, max)
	case max > 0 && n > max:
		return fmt.Sprintf("%s cannot exceed %d characters", def.Label, max)
	case min > 0 && n < min:
		return fmt.Sprintf("%s must be at least %d characters", def.Label, min)
	}
	return ""
}

func requiredMsg(def FieldDef) string {
	if def.RequiredError != "" {
		return def.RequiredError
	}
	return def.Label + " is required"
}

// -----------------------------------------------------------------------------
// Upload fields
// -----------------------------------------------------------------------------

// ValidateFiles checks newly selected files for an upload field.  kept is the
// number of existing attachments that stay on the record; a required single
// image is satisfied by a kept attachment, and the gallery cap counts kept and
// new files together.
func ValidateFiles(def FieldDef, files []File, kept int) string {
	if !def.Type.IsFile() {
		return ""
	}
	if len(files) == 0 && kept == 0 {
		if def.Required {
			return requiredMsg(def)
		}
		return ""
	}

	if def.Type == TypeImage {
		if len(files) > 1 {
			return "Please choose a single image"
		}
		if len(files) == 1 {
			return checkImage(files[0])
		}
		return ""
	}

	if def.MaxFiles > 0 && kept+len(files) > def.MaxFiles {
		return fmt.Sprintf("You can upload at most %d images", def.MaxFiles)
	}
	var bad []string
	for _, f := range files {
		if msg := checkImage(f); msg != "" {
			bad = append(bad, f.Name+": "+msg)
		}
	}
	return strings.Join(bad, "; ")
}

// checkImage reports the first failing constraint: MIME type, then size.
func checkImage(f File) string {
	if !strings.HasPrefix(strings.ToLower(f.Type), "image/") {
		return "File must be an image (JPEG, PNG, GIF)"
	}
	if f.Size > MaxImageBytes {
		return "Image size must not exceed 5MB"
	}
	return ""
}

// -----------------------------------------------------------------------------
// Whole form
// -----------------------------------------------------------------------------

// ValidateDraft runs every field that participates in mode against d.
func ValidateDraft(fd *FormDef, d *Draft, mode Mode, vctx ValidationContext) Result {
	res := make(Result)
	for _, f := range fd.FieldsFor(mode) {
		res[f.Name] = validateOne(f, d, mode, vctx)
	}
	return res
}

// validateOne dispatches a single field against the draft.
func validateOne(f FieldDef, d *Draft, mode Mode, vctx ValidationContext) string {
	if f.Type.IsFile() {
		return ValidateFiles(f, d.Files(f.Name), len(d.Existing(f.Name)))
	}
	// Blank password on update means unchanged.
	if f.Type == TypePassword && mode == ModeUpdate && strings.TrimSpace(d.Value(f.Name)) == "" {
		return ""
	}
	return ValidateField(f, d.Value(f.Name), vctx)
}
