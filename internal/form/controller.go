// internal/form/controller.go
//
// Studyhub – Forms subsystem: submission controller.
//
// Context
//   A Controller owns one form instance: the draft, the latest validation
//   result, and the submission state machine
//
//      Editing → Validating → Submitting → {Succeeded, Failed}
//
//   Succeeded and Failed fall back to Editing on the next input event.  The
//   draft is reset on success and left untouched on failure.
//
// Workflow
//   •  Change, Blur, SelectFiles, and RemoveExisting are input events.
//      A field is validated live only after it has been touched.
//   •  Submit checks the actor precondition, validates every field, snapshots
//      the draft, and calls the Backend without holding the lock.
//   •  On success it resets the draft, shows a notice, runs YAML actions
//      (best effort), and navigates exactly once.
//   •  Delete follows the same path for update-mode controllers.
//
// Notes
//   Only one Submit or Delete may be in flight.  Edits made while a request is
//   in flight land in the live draft and apply to the next submission.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/studyhub/internal/metrics"
)

// DefaultTimeout bounds a backend call when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Notice texts shared with the web layer and tests.
const (
	MsgLoginRequired = "You must be logged in to continue."
	MsgFixErrors     = "Please fix the errors in the form before submitting."
)

// State is the controller’s position in the submission state machine.
type State int

const (
	StateEditing State = iota
	StateValidating
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "editing"
	}
}

// Options configures a Controller.  Kind and Backend are required.
type Options struct {
	Kind     Kind
	Mode     Mode
	RecordID string

	Backend   Backend
	Actor     ActorSource
	Navigator Navigator
	Notifier  Notifier
	Log       NotificationLog
	Logger    *zap.SugaredLogger

	RefDate time.Time     // zero means today, fixed at construction
	Timeout time.Duration // zero means DefaultTimeout
}

// Controller drives one form instance.  It is safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	def      *FormDef
	opts     Options
	vctx     ValidationContext
	draft    *Draft
	errs     Result
	state    State
	inFlight bool
}

// NewController looks up the definition for opts.Kind and returns a
// controller holding an initial draft.
func NewController(opts Options) (*Controller, error) {
	def, ok := Lookup(opts.Kind)
	if !ok {
		return nil, fmt.Errorf("form: no definition for kind %q", opts.Kind)
	}
	if opts.Backend == nil {
		return nil, errors.New("form: Backend is required")
	}
	if opts.Mode == ModeUpdate && opts.RecordID == "" && opts.Kind != KindProfile {
		return nil, errors.New("form: update mode needs a RecordID")
	}
	if opts.Mode == ModeUpdate && opts.Kind == KindRegister {
		return nil, errors.New("form: register only creates")
	}
	if opts.Actor == nil {
		opts.Actor = StaticActor("")
	}
	if opts.Navigator == nil {
		opts.Navigator = nopNavigator{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.S()
	}
	if opts.RefDate.IsZero() {
		opts.RefDate = time.Now()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	c := &Controller{
		def:  def,
		opts: opts,
		vctx: ValidationContext{RefDate: opts.RefDate},
		errs: make(Result),
	}
	c.draft = c.initialDraft()
	return c, nil
}

// Def returns the form definition the controller was built from.
func (c *Controller) Def() *FormDef { return c.def }

// Mode returns the controller’s mode.
func (c *Controller) Mode() Mode { return c.opts.Mode }

// RecordID returns the record being edited, if any.
func (c *Controller) RecordID() string { return c.opts.RecordID }

// initialDraft returns the empty/default draft for the controller’s mode.
func (c *Controller) initialDraft() *Draft {
	d := NewDraft()
	for _, f := range c.def.FieldsFor(c.opts.Mode) {
		if f.Type.IsFile() {
			continue
		}
		switch f.Default {
		case "":
		case TodayDefault:
			d.Set(f.Name, c.vctx.Today())
		default:
			d.Set(f.Name, f.Default)
		}
	}
	return d
}

// -----------------------------------------------------------------------------
// Input events
// -----------------------------------------------------------------------------

// Change sets a text value and, when the field was already touched,
// revalidates it.  It returns the field’s current message.
func (c *Controller) Change(name, value string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.field(name)
	if !ok {
		return ""
	}
	c.draft.Set(name, value)
	c.backToEditing()
	if c.draft.Touched(name) {
		c.errs[name] = validateOne(f, c.draft, c.opts.Mode, c.vctx)
	}
	return c.errs[name]
}

// Blur marks a field as touched and validates it.
func (c *Controller) Blur(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.field(name)
	if !ok {
		return ""
	}
	c.draft.Touch(name)
	c.errs[name] = validateOne(f, c.draft, c.opts.Mode, c.vctx)
	return c.errs[name]
}

// SelectFiles replaces the selection for an upload field.  Choosing a file
// counts as touching the field.
func (c *Controller) SelectFiles(name string, files []File) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.field(name)
	if !ok || !f.Type.IsFile() {
		return ""
	}
	c.draft.SetFiles(name, files)
	c.draft.Touch(name)
	c.backToEditing()
	c.errs[name] = validateOne(f, c.draft, c.opts.Mode, c.vctx)
	return c.errs[name]
}

// RemoveExisting drops an existing attachment from the record.
func (c *Controller) RemoveExisting(name, ref string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.field(name)
	if !ok || !f.Type.IsFile() || !c.draft.RemoveExisting(name, ref) {
		return c.errs[name]
	}
	c.backToEditing()
	if c.draft.Touched(name) {
		c.errs[name] = validateOne(f, c.draft, c.opts.Mode, c.vctx)
	}
	return c.errs[name]
}

// field returns a definition that participates in the controller’s mode.
func (c *Controller) field(name string) (FieldDef, bool) {
	f, ok := c.def.Field(name)
	if !ok || (f.CreateOnly && c.opts.Mode == ModeUpdate) {
		return FieldDef{}, false
	}
	return f, true
}

func (c *Controller) backToEditing() {
	if c.state == StateSucceeded || c.state == StateFailed {
		c.state = StateEditing
	}
}

// -----------------------------------------------------------------------------
// Read accessors
// -----------------------------------------------------------------------------

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Errors returns a copy of the latest messages, including empty ones.
func (c *Controller) Errors() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(Result, len(c.errs))
	for k, v := range c.errs {
		out[k] = v
	}
	return out
}

// Values returns a copy of the draft’s text values.
func (c *Controller) Values() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Values()
}

// Draft returns a deep copy of the draft.
func (c *Controller) Draft() *Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Clone()
}

// -----------------------------------------------------------------------------
// Prefill
// -----------------------------------------------------------------------------

// Prefill fetches the record being updated and seeds the draft.  Password
// fields are never copied.
func (c *Controller) Prefill(ctx context.Context) error {
	if c.opts.Mode != ModeUpdate {
		return errors.New("form: Prefill needs update mode")
	}
	actor, serr := c.requireActor(ctx)
	if serr != nil {
		return serr
	}

	id := c.recordID(actor)
	snap, err := c.opts.Backend.Fetch(ctx, c.def.Kind, id, actor)
	if err != nil {
		return fmt.Errorf("prefill %s %s: %w", c.def.Kind, id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.initialDraft()
	for _, f := range c.def.FieldsFor(ModeUpdate) {
		switch {
		case f.Type == TypePassword:
		case f.Type.IsFile():
			d.SetExisting(f.Name, snap.Attachments[f.Name])
		default:
			if v, ok := snap.Values[f.Name]; ok {
				d.Set(f.Name, v)
			}
		}
	}
	c.draft = d
	c.errs = make(Result)
	c.state = StateEditing
	return nil
}

// recordID resolves the id used for backend calls.  A profile with no
// explicit id is the actor’s own.
func (c *Controller) recordID(actor string) string {
	if c.opts.RecordID == "" && c.def.Kind == KindProfile {
		return actor
	}
	return c.opts.RecordID
}

// -----------------------------------------------------------------------------
// Submit and Delete
// -----------------------------------------------------------------------------

// Submit validates the whole draft and, when valid, sends it to the Backend.
// The returned error is ErrSubmitInFlight or a *SubmitError.
func (c *Controller) Submit(ctx context.Context) (Receipt, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return Receipt{}, ErrSubmitInFlight
	}

	actor, serr := c.requireActor(ctx)
	if serr != nil {
		c.mu.Unlock()
		c.record("unauthenticated")
		c.opts.Notifier.Notify(Notice{Level: NoticeWarning, Title: "Login required", Text: serr.Message})
		c.opts.Navigator.Navigate(c.def.LoginRoute)
		return Receipt{}, serr
	}

	c.state = StateValidating
	res := ValidateDraft(c.def, c.draft, c.opts.Mode, c.vctx)
	for name := range res {
		c.draft.Touch(name)
	}
	c.errs = res
	if !res.Valid() {
		c.state = StateEditing
		c.mu.Unlock()
		for _, name := range res.Fields() {
			metrics.ValidationFailuresTotal.WithLabelValues(string(c.def.Kind), name).Inc()
		}
		c.record("validation_rejected")
		c.opts.Notifier.Notify(Notice{Level: NoticeError, Title: "Validation Error", Text: MsgFixErrors})
		return Receipt{}, &SubmitError{Kind: ValidationRejected, Message: MsgFixErrors, Fields: res}
	}

	sub := c.snapshot(actor)
	c.state = StateSubmitting
	c.inFlight = true
	c.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	rcpt, err := c.opts.Backend.Submit(callCtx, sub)
	cancel()

	if err != nil {
		return Receipt{}, c.fail(err)
	}

	event := c.opts.Mode.String()
	c.succeed(ctx, event, sub.Values, c.successText(rcpt, event))
	return rcpt, nil
}

// Delete removes the record being edited.  The returned error is
// ErrSubmitInFlight or a *SubmitError.
func (c *Controller) Delete(ctx context.Context) (Receipt, error) {
	if c.opts.Mode != ModeUpdate {
		return Receipt{}, errors.New("form: Delete needs update mode")
	}
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return Receipt{}, ErrSubmitInFlight
	}
	actor, serr := c.requireActor(ctx)
	if serr != nil {
		c.mu.Unlock()
		c.opts.Notifier.Notify(Notice{Level: NoticeWarning, Title: "Login required", Text: serr.Message})
		c.opts.Navigator.Navigate(c.def.LoginRoute)
		return Receipt{}, serr
	}
	values := c.draft.Values()
	c.state = StateSubmitting
	c.inFlight = true
	c.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	rcpt, err := c.opts.Backend.Delete(callCtx, c.def.Kind, c.recordID(actor), actor)
	cancel()

	if err != nil {
		return Receipt{}, c.fail(err)
	}
	c.succeed(ctx, "delete", values, c.successText(rcpt, "delete"))
	return rcpt, nil
}

// requireActor enforces the login precondition.  Kinds that do not need an
// actor still pass along whatever id is available.
func (c *Controller) requireActor(ctx context.Context) (string, *SubmitError) {
	id, ok := c.opts.Actor.ActorID(ctx)
	if ok && id != "" {
		return id, nil
	}
	if c.def.RequiresActor {
		return "", &SubmitError{Kind: Unauthenticated, Message: MsgLoginRequired}
	}
	return "", nil
}

// snapshot freezes the draft into a Submission.  Text values are trimmed;
// passwords go out exactly as typed.  Caller holds c.mu.
func (c *Controller) snapshot(actor string) Submission {
	sub := Submission{
		Kind:     c.def.Kind,
		Mode:     c.opts.Mode,
		RecordID: c.recordID(actor),
		ActorID:  actor,
		RefDate:  c.opts.RefDate,
		Values:   make(map[string]string),
		Files:    make(map[string]FileChange),
	}
	for _, f := range c.def.FieldsFor(c.opts.Mode) {
		if f.Type.IsFile() {
			sub.Files[f.Name] = c.draft.fileChange(f.Name)
			continue
		}
		if f.Type == TypePassword {
			sub.Values[f.Name] = c.draft.Value(f.Name)
			continue
		}
		sub.Values[f.Name] = strings.TrimSpace(c.draft.Value(f.Name))
	}
	return sub
}

// fail records a backend failure.  The draft is left as it is.
func (c *Controller) fail(err error) *SubmitError {
	c.mu.Lock()
	c.inFlight = false
	c.state = StateFailed
	c.mu.Unlock()

	se := serverFailure(err)
	c.opts.Logger.Warnw("form submission failed",
		"kind", c.def.Kind, "mode", c.opts.Mode.String(), "error", err)
	c.record("failed")
	c.opts.Notifier.Notify(Notice{Level: NoticeError, Title: "Error", Text: se.Message})
	return se
}

// succeed resets the draft, then runs notice, actions, and navigation outside
// the lock.
func (c *Controller) succeed(ctx context.Context, event string, values map[string]string, text string) {
	c.mu.Lock()
	c.inFlight = false
	c.state = StateSucceeded
	c.draft = c.initialDraft()
	c.errs = make(Result)
	c.mu.Unlock()

	c.record("succeeded")
	c.opts.Notifier.Notify(Notice{Level: NoticeSuccess, Title: "Success", Text: text})
	ExecuteActions(c.def, event, values, ActionCtx{
		Ctx:        ctx,
		Log:        c.opts.Log,
		Logger:     c.opts.Logger,
		RecordName: values[c.def.NameField],
	})
	route := c.def.SuccessRoute
	if event == "delete" {
		route = c.def.DeleteRoute
	}
	c.opts.Navigator.Navigate(route)
}

func (c *Controller) successText(r Receipt, event string) string {
	if event == "delete" && c.def.DeleteMessage != "" {
		return c.def.DeleteMessage
	}
	if m := strings.TrimSpace(r.Message); m != "" {
		return m
	}
	if event == "delete" {
		return c.def.Title + " deleted successfully"
	}
	if c.def.SuccessMessage != "" {
		return c.def.SuccessMessage
	}
	if event == "update" {
		return c.def.Title + " updated successfully"
	}
	return c.def.Title + " created successfully"
}

func (c *Controller) record(outcome string) {
	metrics.SubmissionsTotal.WithLabelValues(string(c.def.Kind), c.opts.Mode.String(), outcome).Inc()
}
