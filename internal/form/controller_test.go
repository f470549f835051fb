// internal/form/controller_test.go
//
// Unit-tests for the submission state machine.
//
// Context
// -------
// fakeBackend records every call and lets each test choose the outcome.
// recorder collects navigations, notices, and notification-log appends so
// the tests can assert side effects precisely:
//
//   • Invalid draft          → no backend call, ValidationRejected
//   • Missing actor          → no validation, Unauthenticated, login route
//   • 2xx                    → draft reset, one navigation, notify action
//   • non-2xx / transport    → draft unchanged, server message surfaced
//   • second submit in flight → ErrSubmitInFlight
//
// Notes
// -----
// • Oxford commas, two spaces after periods.

package form

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type userErr struct{ msg string }

func (e userErr) Error() string       { return "backend: " + e.msg }
func (e userErr) UserMessage() string { return e.msg }

type fakeBackend struct {
	mu      sync.Mutex
	subs    []Submission
	deletes []string
	fetches int
	err     error
	rcpt    Receipt
	snap    Snapshot
	gate    chan struct{} // when set, Submit blocks until closed
	entered chan struct{}
}

func (b *fakeBackend) Submit(ctx context.Context, s Submission) (Receipt, error) {
	b.mu.Lock()
	b.subs = append(b.subs, s)
	gate, entered := b.gate, b.entered
	b.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return b.rcpt, b.err
}

func (b *fakeBackend) Fetch(ctx context.Context, kind Kind, id, actor string) (Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetches++
	return b.snap, nil
}

func (b *fakeBackend) Delete(ctx context.Context, kind Kind, id, actor string) (Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, id)
	return b.rcpt, b.err
}

func (b *fakeBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

type recorder struct {
	mu      sync.Mutex
	routes  []string
	notices []Notice
	entries []string
	logErr  error
}

func (r *recorder) Navigate(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
}

func (r *recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) Append(_ context.Context, action, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.logErr != nil {
		return r.logErr
	}
	r.entries = append(r.entries, action+":"+name)
	return nil
}

func (r *recorder) lastNotice() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}
	}
	return r.notices[len(r.notices)-1]
}

var refDate = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func newPostController(t *testing.T, mode Mode, be *fakeBackend, rec *recorder, actor string) *Controller {
	t.Helper()
	MustLoadDefaults()
	id := ""
	if mode == ModeUpdate {
		id = "p-1"
	}
	c, err := NewController(Options{
		Kind:      KindPost,
		Mode:      mode,
		RecordID:  id,
		Backend:   be,
		Actor:     StaticActor(actor),
		Navigator: rec,
		Notifier:  rec,
		Log:       rec,
		RefDate:   refDate,
		Timeout:   time.Second,
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

func fillValidPost(c *Controller) {
	c.Change("name", "Graph Theory")
	c.Change("topic", "Algorithms")
	c.Change("description", "Dijkstra and friends")
	c.Change("status", "Started")
	c.Change("tag", "cs")
	c.SelectFiles("image", []File{BytesFile("g.png", "image/png", []byte("png"))})
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestController_InitialDraftDefaults(t *testing.T) {
	c := newPostController(t, ModeCreate, &fakeBackend{}, &recorder{}, "u-1")
	if got := c.Values()["createdAt"]; got != "2025-03-14" {
		t.Fatalf("createdAt default = %q", got)
	}
	if c.State() != StateEditing {
		t.Fatalf("initial state %s", c.State())
	}
}

func TestController_LiveValidationOnlyAfterTouch(t *testing.T) {
	c := newPostController(t, ModeCreate, &fakeBackend{}, &recorder{}, "u-1")
	if msg := c.Change("name", "A1"); msg != "" {
		t.Fatalf("untouched field reported %q", msg)
	}
	if msg := c.Blur("name"); msg != "Name can only contain letters and spaces" {
		t.Fatalf("blur: %q", msg)
	}
	if msg := c.Change("name", "Al"); msg != "" {
		t.Fatalf("touched field still failing: %q", msg)
	}
}

func TestController_InvalidDraftNeverReachesBackend(t *testing.T) {
	be := &fakeBackend{}
	rec := &recorder{}
	c := newPostController(t, ModeCreate, be, rec, "u-1")
	c.Change("name", "A1")

	_, err := c.Submit(context.Background())
	if !IsValidationError(err) {
		t.Fatalf("want ValidationRejected, got %v", err)
	}
	if be.calls() != 0 {
		t.Fatalf("backend called %d times", be.calls())
	}
	if c.State() != StateEditing {
		t.Fatalf("state after rejection %s", c.State())
	}
	if n := rec.lastNotice(); n.Text != MsgFixErrors {
		t.Fatalf("notice %q", n.Text)
	}
	errs := c.Errors()
	if errs["name"] == "" || errs["image"] != "Image is required" {
		t.Fatalf("untouched fields not validated: %#v", errs)
	}
	if len(rec.routes) != 0 {
		t.Fatalf("navigated on rejection: %v", rec.routes)
	}
}

func TestController_Unauthenticated(t *testing.T) {
	be := &fakeBackend{}
	rec := &recorder{}
	c := newPostController(t, ModeCreate, be, rec, "")

	_, err := c.Submit(context.Background())
	if !IsUnauthenticated(err) {
		t.Fatalf("want Unauthenticated, got %v", err)
	}
	if be.calls() != 0 {
		t.Fatalf("backend called")
	}
	if len(c.Errors()) != 0 {
		t.Fatalf("validation ran before actor check: %#v", c.Errors())
	}
	if len(rec.routes) != 1 || rec.routes[0] != "/login" {
		t.Fatalf("routes %v", rec.routes)
	}
}

func TestController_SuccessResetsAndNavigatesOnce(t *testing.T) {
	be := &fakeBackend{rcpt: Receipt{ID: "p-9"}}
	rec := &recorder{}
	c := newPostController(t, ModeCreate, be, rec, "u-1")
	fillValidPost(c)

	rcpt, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rcpt.ID != "p-9" {
		t.Fatalf("receipt %#v", rcpt)
	}
	if len(rec.routes) != 1 || rec.routes[0] != "/records/post" {
		t.Fatalf("routes %v", rec.routes)
	}
	if c.State() != StateSucceeded {
		t.Fatalf("state %s", c.State())
	}

	vals := c.Values()
	if vals["name"] != "" || vals["createdAt"] != "2025-03-14" {
		t.Fatalf("draft not reset: %#v", vals)
	}
	if len(c.Draft().Files("image")) != 0 {
		t.Fatalf("file selection not cleared")
	}

	sub := be.subs[0]
	if sub.ActorID != "u-1" || sub.Values["name"] != "Graph Theory" || sub.Values["createdAt"] != "2025-03-14" {
		t.Fatalf("submission %#v", sub)
	}
	if fc := sub.Files["image"]; fc.State != FileReplaced || len(fc.New) != 1 {
		t.Fatalf("file change %#v", fc)
	}
	if rec.lastNotice().Text != "Post created successfully" {
		t.Fatalf("notice %q", rec.lastNotice().Text)
	}
	if len(rec.entries) != 0 {
		t.Fatalf("create must not notify: %v", rec.entries)
	}

	c.Change("name", "Next")
	if c.State() != StateEditing {
		t.Fatalf("input after success should return to editing, got %s", c.State())
	}
}

func TestController_FailureKeepsDraft(t *testing.T) {
	for name, backendErr := range map[string]error{
		"server message": userErr{msg: "Post name already taken"},
		"transport":      errors.New("dial tcp: connection refused"),
	} {
		t.Run(name, func(t *testing.T) {
			be := &fakeBackend{err: backendErr}
			rec := &recorder{}
			c := newPostController(t, ModeCreate, be, rec, "u-1")
			fillValidPost(c)
			before := c.Values()

			_, err := c.Submit(context.Background())
			var se *SubmitError
			if !errors.As(err, &se) || se.Kind != NetworkOrServerError {
				t.Fatalf("want NetworkOrServerError, got %v", err)
			}
			want := FallbackMessage
			var ue userErr
			if errors.As(backendErr, &ue) {
				want = ue.msg
			}
			if se.Message != want {
				t.Fatalf("message %q, want %q", se.Message, want)
			}

			after := c.Values()
			for k, v := range before {
				if after[k] != v {
					t.Fatalf("draft changed at %s: %q → %q", k, v, after[k])
				}
			}
			if len(c.Draft().Files("image")) != 1 {
				t.Fatalf("file selection lost")
			}
			if len(rec.routes) != 0 {
				t.Fatalf("navigated on failure")
			}
			if c.State() != StateFailed {
				t.Fatalf("state %s", c.State())
			}
		})
	}
}

func TestController_InFlightGuard(t *testing.T) {
	be := &fakeBackend{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	rec := &recorder{}
	c := newPostController(t, ModeCreate, be, rec, "u-1")
	fillValidPost(c)

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	<-be.entered

	if c.State() != StateSubmitting {
		t.Fatalf("state while waiting: %s", c.State())
	}
	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("second submit: %v", err)
	}
	c.Change("tag", "edited-while-waiting")

	close(be.gate)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if be.calls() != 1 {
		t.Fatalf("backend calls %d", be.calls())
	}
	if be.subs[0].Values["tag"] != "cs" {
		t.Fatalf("in-flight payload picked up later edit: %q", be.subs[0].Values["tag"])
	}
}

func TestController_UpdatePrefillAndNotify(t *testing.T) {
	be := &fakeBackend{snap: Snapshot{
		ID: "p-1",
		Values: map[string]string{
			"name": "Graph Theory", "topic": "Algorithms", "description": "Dijkstra and friends",
			"status": "Completed", "tag": "cs", "createdAt": "2024-01-01",
		},
		Attachments: map[string][]string{"image": {"graph.png"}},
	}}
	rec := &recorder{}
	c := newPostController(t, ModeUpdate, be, rec, "u-1")

	if err := c.Prefill(context.Background()); err != nil {
		t.Fatalf("Prefill: %v", err)
	}
	if _, ok := c.Values()["createdAt"]; ok {
		t.Fatalf("create-only field prefilled")
	}

	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	sub := be.subs[0]
	if sub.RecordID != "p-1" || sub.Mode != ModeUpdate {
		t.Fatalf("submission %#v", sub)
	}
	if fc := sub.Files["image"]; fc.State != FileUnchanged || len(fc.Kept) != 1 {
		t.Fatalf("file change %#v", fc)
	}
	if len(rec.entries) != 1 || rec.entries[0] != "updated:Graph Theory" {
		t.Fatalf("notification entries %v", rec.entries)
	}
}

func TestController_RemoveExistingTracksDeletion(t *testing.T) {
	MustLoadDefaults()
	be := &fakeBackend{snap: Snapshot{
		Values:      map[string]string{"name": "Ada", "topic": "Sets", "description": "Cardinality notes", "status": "Started"},
		Attachments: map[string][]string{"image": {"old.png"}},
	}}
	c, err := NewController(Options{
		Kind: KindProgress, Mode: ModeUpdate, RecordID: "g-1",
		Backend: be, Actor: StaticActor("u-1"), RefDate: refDate,
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if err := c.Prefill(context.Background()); err != nil {
		t.Fatalf("Prefill: %v", err)
	}
	c.RemoveExisting("image", "old.png")

	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	fc := be.subs[0].Files["image"]
	if fc.State != FileDeleted || len(fc.Removed) != 1 || fc.Removed[0] != "old.png" {
		t.Fatalf("file change %#v", fc)
	}
}

func TestController_ActionFailureDoesNotFailSubmit(t *testing.T) {
	be := &fakeBackend{snap: Snapshot{Values: map[string]string{
		"name": "Graph Theory", "topic": "Algorithms", "description": "Dijkstra and friends", "status": "Started",
	}, Attachments: map[string][]string{"image": {"g.png"}}}}
	rec := &recorder{logErr: errors.New("disk full")}
	c := newPostController(t, ModeUpdate, be, rec, "u-1")
	if err := c.Prefill(context.Background()); err != nil {
		t.Fatalf("Prefill: %v", err)
	}
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit failed because of action: %v", err)
	}
	if len(rec.routes) != 1 {
		t.Fatalf("routes %v", rec.routes)
	}
}

func TestController_Delete(t *testing.T) {
	be := &fakeBackend{snap: Snapshot{Values: map[string]string{"name": "Old Notes"}}}
	rec := &recorder{}
	c := newPostController(t, ModeUpdate, be, rec, "u-1")
	if err := c.Prefill(context.Background()); err != nil {
		t.Fatalf("Prefill: %v", err)
	}
	if _, err := c.Delete(context.Background()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(be.deletes) != 1 || be.deletes[0] != "p-1" {
		t.Fatalf("deletes %v", be.deletes)
	}
	if len(rec.entries) != 1 || rec.entries[0] != "deleted:Old Notes" {
		t.Fatalf("entries %v", rec.entries)
	}
}

func TestController_ProfileNeverPrefillsPassword(t *testing.T) {
	MustLoadDefaults()
	be := &fakeBackend{snap: Snapshot{Values: map[string]string{
		"fullname": "Ada Lovelace", "email": "ada@example.com", "phone": "077", "password": "hunter2",
	}}}
	c, err := NewController(Options{Kind: KindProfile, Mode: ModeUpdate, Backend: be, Actor: StaticActor("u-7")})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if err := c.Prefill(context.Background()); err != nil {
		t.Fatalf("Prefill: %v", err)
	}
	if v := c.Values()["password"]; v != "" {
		t.Fatalf("password prefilled: %q", v)
	}
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if be.subs[0].RecordID != "u-7" {
		t.Fatalf("profile record id %q", be.subs[0].RecordID)
	}
}

func TestController_PasswordSubmittedAsTyped(t *testing.T) {
	MustLoadDefaults()
	be := &fakeBackend{snap: Snapshot{Values: map[string]string{
		"fullname": "Ada Lovelace", "email": "ada@example.com", "phone": "077",
	}}}
	c, err := NewController(Options{Kind: KindProfile, Mode: ModeUpdate, Backend: be, Actor: StaticActor("u-7")})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if err := c.Prefill(context.Background()); err != nil {
		t.Fatalf("Prefill: %v", err)
	}
	c.Change("fullname", "  Ada Lovelace ")
	c.Change("password", "  secret99  ")
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got := be.subs[0].Values
	if got["password"] != "  secret99  " {
		t.Fatalf("password = %q", got["password"])
	}
	if got["fullname"] != "Ada Lovelace" {
		t.Fatalf("fullname = %q", got["fullname"])
	}
}

func TestController_ProfileDeleteGoesToLogin(t *testing.T) {
	MustLoadDefaults()
	be := &fakeBackend{snap: Snapshot{Values: map[string]string{"fullname": "Ada Lovelace"}}}
	rec := &recorder{}
	c, err := NewController(Options{
		Kind: KindProfile, Mode: ModeUpdate, Backend: be, Actor: StaticActor("u-7"),
		Navigator: rec, Notifier: rec, Log: rec,
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if _, err := c.Delete(context.Background()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(be.deletes) != 1 || be.deletes[0] != "u-7" {
		t.Fatalf("deletes %v", be.deletes)
	}
	if len(rec.routes) != 1 || rec.routes[0] != "/login" {
		t.Fatalf("routes %v", rec.routes)
	}
	if n := rec.lastNotice(); n.Text != "Account deleted successfully" {
		t.Fatalf("notice %+v", n)
	}
}

func TestController_RegisterCreatesOnly(t *testing.T) {
	MustLoadDefaults()
	if _, err := NewController(Options{Kind: KindRegister, Mode: ModeUpdate, RecordID: "u-1", Backend: &fakeBackend{}}); err == nil {
		t.Fatalf("register accepted update mode")
	}
	be := &fakeBackend{rcpt: Receipt{ID: "43"}}
	rec := &recorder{}
	c, err := NewController(Options{Kind: KindRegister, Mode: ModeCreate, Backend: be, Navigator: rec, Notifier: rec})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	c.Change("fullname", "Ada Lovelace")
	c.Change("email", "ada@example.com")
	c.Change("password", "secret99")
	c.Change("phone", "0771234567")
	rcpt, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rcpt.ID != "43" || len(rec.routes) != 1 || rec.routes[0] != "/login" {
		t.Fatalf("receipt %+v routes %v", rcpt, rec.routes)
	}
	if be.subs[0].ActorID != "" {
		t.Fatalf("actor %q", be.subs[0].ActorID)
	}
	if n := rec.lastNotice(); n.Text != "Registration successful! Please log in." {
		t.Fatalf("notice %+v", n)
	}
}
