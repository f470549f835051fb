// internal/form/submit.go
//
// Studyhub – Forms subsystem: submission outcomes and request helpers.
//
// Context
//   Every failed Submit or Delete returns a *SubmitError tagged with one of
//   three kinds.  Handlers branch on the kind with errors.As or the Is*
//   helpers; a ValidationRejected error is a user error, not a 500.
//
//   DraftFromRequest feeds a parsed multipart request into a controller so the
//   web layer stays a thin driver.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FallbackMessage is shown when the server gives no usable message.
const FallbackMessage = "Failed to save. Please try again."

// ErrSubmitInFlight is returned when Submit or Delete is triggered while a
// previous call on the same controller is still waiting on the backend.
var ErrSubmitInFlight = errors.New("form: submission already in flight")

// FailureKind tags a SubmitError.
type FailureKind int

const (
	ValidationRejected FailureKind = iota + 1
	Unauthenticated
	NetworkOrServerError
)

func (k FailureKind) String() string {
	switch k {
	case ValidationRejected:
		return "validation_rejected"
	case Unauthenticated:
		return "unauthenticated"
	case NetworkOrServerError:
		return "network_or_server_error"
	default:
		return "unknown"
	}
}

// SubmitError is the failure outcome of Submit or Delete.
type SubmitError struct {
	Kind    FailureKind
	Message string // user-facing
	Fields  Result // populated for ValidationRejected
	Err     error  // underlying cause for NetworkOrServerError
}

func (e *SubmitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// IsValidationError reports whether err is a ValidationRejected outcome.
func IsValidationError(err error) bool { return failureKind(err) == ValidationRejected }

// IsUnauthenticated reports whether err is an Unauthenticated outcome.
func IsUnauthenticated(err error) bool { return failureKind(err) == Unauthenticated }

func failureKind(err error) FailureKind {
	var se *SubmitError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// serverFailure wraps a backend error, surfacing its message verbatim when it
// has one.
func serverFailure(err error) *SubmitError {
	var se *SubmitError
	if errors.As(err, &se) {
		return se
	}
	msg := FallbackMessage
	var um interface{ UserMessage() string }
	if errors.As(err, &um) {
		if m := strings.TrimSpace(um.UserMessage()); m != "" {
			msg = m
		}
	}
	return &SubmitError{Kind: NetworkOrServerError, Message: msg, Err: err}
}

// -----------------------------------------------------------------------------
// HTTP helpers
// -----------------------------------------------------------------------------

// MaxUploadMemory bounds in-memory multipart parsing; larger parts spill to
// temporary files.
const MaxUploadMemory = 32 << 20

// RemovedKey is the form key carrying existing attachments the user ticked
// for removal.  Values are "<field>:<ref>".
const RemovedKey = "removed"

// DraftFromRequest copies a posted form into c: every text field is set and
// touched, uploads replace the selection, and ticked attachments are removed.
// Fields not present in the request are left unchanged.
func DraftFromRequest(c *Controller, r *http.Request) error {
	if err := r.ParseMultipartForm(MaxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return fmt.Errorf("parse form: %w", err)
	}
	if r.PostForm == nil {
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("parse form: %w", err)
		}
	}

	for _, f := range c.def.FieldsFor(c.opts.Mode) {
		if f.Type.IsFile() {
			if r.MultipartForm == nil {
				continue
			}
			headers := r.MultipartForm.File[f.Name]
			if len(headers) == 0 {
				continue
			}
			files := make([]File, 0, len(headers))
			for _, fh := range headers {
				if fh.Filename == "" && fh.Size == 0 {
					continue
				}
				file, err := FileFromHeader(fh)
				if err != nil {
					return err
				}
				files = append(files, file)
			}
			if len(files) > 0 {
				c.SelectFiles(f.Name, files)
			}
			continue
		}
		if vals, ok := r.PostForm[f.Name]; ok && len(vals) > 0 {
			c.Change(f.Name, vals[0])
			c.Blur(f.Name)
		}
	}

	for _, v := range r.PostForm[RemovedKey] {
		field, ref, ok := strings.Cut(v, ":")
		if ok {
			c.RemoveExisting(field, ref)
		}
	}
	return nil
}
