// components/forms/forms.go
//
// studyhub forms component: create, update, delete, and list records.
//
// Context
//   Each request builds a fresh form.Controller for the kind in the URL.
//   The posted body is copied into the controller’s draft, the controller
//   validates and submits, and a pageState captures the navigation and
//   notice the controller asks for.
//
// Workflow
//   •  GET  /forms/{kind}/new           – blank create form.
//   •  POST /forms/{kind}/new           – validate and create.
//   •  GET  /forms/{kind}/{id}/edit     – prefilled update form.
//   •  POST /forms/{kind}/{id}/edit     – validate and update.
//   •  POST /forms/{kind}/{id}/delete   – delete, then go to the list.
//   •  GET  /forms/profile/edit         – the actor’s own profile.
//   •  POST /forms/profile/delete       – delete the account and log out.
//   •  GET  /register                   – blank registration form.
//   •  POST /register                   – create an account, then go to login.
//   •  POST /forms/{kind}/validate      – live validation, JSON.
//   •  GET  /records/{kind}             – records owned by the actor.
//
// Outcomes
//   •  Success         – flash notice, 303 to the form’s success route.
//   •  Unauthenticated – flash notice, 303 to the login route.
//   •  Invalid input   – 422 with field messages; draft kept.
//   •  Backend failure – 502 with the server’s message; draft kept.
//
//------------------------------------------------------------------------------

package forms

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/studyhub/internal/api"
	"github.com/yanizio/studyhub/internal/auth"
	"github.com/yanizio/studyhub/internal/component"
	"github.com/yanizio/studyhub/internal/form"
	"github.com/yanizio/studyhub/internal/logger"
)

var _ component.Component = (*Component)(nil)

// liveRecordID stands in for the record id when validating an update form
// live; validation never reaches the backend.
const liveRecordID = "live"

// Component serves the record forms.
type Component struct {
	d component.Deps
}

type formPage struct {
	View         form.View
	DeleteAction string
}

type listRow struct {
	ID      string
	Name    string
	EditURL string
}

type listPage struct {
	NewURL string
	Rows   []listRow
}

type liveResult struct {
	Valid  bool        `json:"valid"`
	Errors []liveError `json:"errors"`
}

type liveError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

func init() {
	component.Register("forms", func(d component.Deps) (component.Component, error) {
		if d.Backend == nil || d.Views == nil {
			return nil, errors.New("forms needs a backend and a renderer")
		}
		return &Component{d: d}, nil
	})
}

func (c *Component) Name() string { return "forms" }

func (c *Component) Routes(r chi.Router) {
	r.Get("/", c.home)
	r.Get("/register", c.registerGET)
	r.Post("/register", c.registerPOST)
	r.Route("/forms/{kind}", func(fr chi.Router) {
		fr.Get("/new", c.newGET)
		fr.Post("/new", c.newPOST)
		fr.Post("/validate", c.validate)
		fr.Get("/edit", c.editGET)
		fr.Post("/edit", c.editPOST)
		fr.Post("/delete", c.deletePOST)
		fr.Get("/{id}/edit", c.editGET)
		fr.Post("/{id}/edit", c.editPOST)
		fr.Post("/{id}/delete", c.deletePOST)
	})
	r.Get("/records/{kind}", c.list)
}

/*──────────────────────────── plumbing ────────────────────────────────────*/

// kind resolves {kind}; it writes a 404 and returns false when unknown.
func kindParam(w http.ResponseWriter, r *http.Request) (form.Kind, bool) {
	k, err := form.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		http.NotFound(w, r)
		return "", false
	}
	return k, true
}

func (c *Component) controller(r *http.Request, kind form.Kind, mode form.Mode, id string) (*form.Controller, *pageState, error) {
	ps := &pageState{}
	opts := form.Options{
		Kind:      kind,
		Mode:      mode,
		RecordID:  id,
		Backend:   c.d.Backend,
		Actor:     form.ActorFunc(auth.ActorID),
		Navigator: ps,
		Notifier:  ps,
		Logger:    logger.FromContext(r.Context()),
		RefDate:   c.d.RefDate,
		Timeout:   c.d.Timeout,
	}
	if c.d.Notifications != nil {
		opts.Log = c.d.Notifications
	}
	ctl, err := form.NewController(opts)
	return ctl, ps, err
}

func formAction(kind form.Kind, id string) string {
	switch {
	case kind == form.KindProfile:
		return "/forms/profile/edit"
	case kind == form.KindRegister:
		return "/register"
	case id == "":
		return "/forms/" + string(kind) + "/new"
	default:
		return "/forms/" + string(kind) + "/" + id + "/edit"
	}
}

func pageTitle(ctl *form.Controller) string {
	if ctl.Mode() == form.ModeUpdate {
		return "Update " + ctl.Def().Title
	}
	return "Create " + ctl.Def().Title
}

// renderForm writes the form page with the controller’s current view.
func (c *Component) renderForm(w http.ResponseWriter, r *http.Request, status int, ctl *form.Controller, notice *form.Notice) {
	v := ctl.View(formAction(ctl.Def().Kind, ctl.RecordID()))
	v.Notice = notice
	page := formPage{View: v}
	switch {
	case ctl.Mode() != form.ModeUpdate:
	case ctl.Def().Kind == form.KindProfile:
		page.DeleteAction = "/forms/profile/delete"
	default:
		page.DeleteAction = "/forms/" + string(ctl.Def().Kind) + "/" + ctl.RecordID() + "/delete"
	}
	c.d.Render(w, r, status, "form", c.d.Page(w, r, pageTitle(ctl), page))
}

// finish maps a Submit or Delete outcome onto the response.
func (c *Component) finish(w http.ResponseWriter, r *http.Request, ctl *form.Controller, ps *pageState, err error) {
	route, notice := ps.snapshot()
	switch {
	case err == nil:
		if route == "" {
			route = ctl.Def().SuccessRoute
		}
		c.d.Redirect(w, r, route, notice)
	case form.IsUnauthenticated(err):
		if route == "" {
			route = ctl.Def().LoginRoute
		}
		c.d.Redirect(w, r, route, notice)
	case form.IsValidationError(err):
		c.renderForm(w, r, http.StatusUnprocessableEntity, ctl, notice)
	case errors.Is(err, form.ErrSubmitInFlight):
		http.Error(w, "submission already in progress", http.StatusConflict)
	default:
		c.renderForm(w, r, http.StatusBadGateway, ctl, notice)
	}
}

/*──────────────────────────── handlers ────────────────────────────────────*/

func (c *Component) home(w http.ResponseWriter, r *http.Request) {
	c.d.Render(w, r, http.StatusOK, "home", c.d.Page(w, r, "Home", nil))
}

// listed reports whether kind has generic /forms and /records routes.
// Profile and register have their own.
func listed(kind form.Kind) bool {
	return kind != form.KindProfile && kind != form.KindRegister
}

func (c *Component) newGET(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok || !listed(kind) {
		http.NotFound(w, r)
		return
	}
	c.blank(w, r, kind)
}

func (c *Component) newPOST(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok || !listed(kind) {
		http.NotFound(w, r)
		return
	}
	c.create(w, r, kind)
}

func (c *Component) registerGET(w http.ResponseWriter, r *http.Request) {
	c.blank(w, r, form.KindRegister)
}

func (c *Component) registerPOST(w http.ResponseWriter, r *http.Request) {
	c.create(w, r, form.KindRegister)
}

func (c *Component) blank(w http.ResponseWriter, r *http.Request, kind form.Kind) {
	ctl, _, err := c.controller(r, kind, form.ModeCreate, "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	c.renderForm(w, r, http.StatusOK, ctl, nil)
}

func (c *Component) create(w http.ResponseWriter, r *http.Request, kind form.Kind) {
	if !component.VerifyCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}
	ctl, ps, err := c.controller(r, kind, form.ModeCreate, "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := form.DraftFromRequest(ctl, r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_, err = ctl.Submit(r.Context())
	c.finish(w, r, ctl, ps, err)
}

// prefilled builds an update controller seeded from the backend.  On
// failure it has already written the response.
func (c *Component) prefilled(w http.ResponseWriter, r *http.Request) (*form.Controller, *pageState, bool) {
	kind, ok := kindParam(w, r)
	if !ok {
		return nil, nil, false
	}
	id := chi.URLParam(r, "id")
	if kind == form.KindRegister || (id == "") != (kind == form.KindProfile) {
		http.NotFound(w, r)
		return nil, nil, false
	}
	ctl, ps, err := c.controller(r, kind, form.ModeUpdate, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, nil, false
	}

	err = ctl.Prefill(r.Context())
	switch {
	case err == nil:
		return ctl, ps, true
	case form.IsUnauthenticated(err):
		c.d.Redirect(w, r, ctl.Def().LoginRoute+"?next="+r.URL.Path, &form.Notice{
			Level: form.NoticeWarning, Title: "Login required", Text: form.MsgLoginRequired,
		})
	case errors.Is(err, api.ErrNotFound):
		http.NotFound(w, r)
	default:
		logger.FromContext(r.Context()).Warnw("prefill failed", "kind", kind, "id", id, "err", err)
		c.renderForm(w, r, http.StatusBadGateway, ctl, &form.Notice{
			Level: form.NoticeError, Title: "Error", Text: userMessage(err),
		})
	}
	return nil, nil, false
}

func (c *Component) editGET(w http.ResponseWriter, r *http.Request) {
	ctl, _, ok := c.prefilled(w, r)
	if !ok {
		return
	}
	c.renderForm(w, r, http.StatusOK, ctl, nil)
}

func (c *Component) editPOST(w http.ResponseWriter, r *http.Request) {
	if !component.VerifyCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}
	ctl, ps, ok := c.prefilled(w, r)
	if !ok {
		return
	}
	if err := form.DraftFromRequest(ctl, r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_, err := ctl.Submit(r.Context())
	c.finish(w, r, ctl, ps, err)
}

func (c *Component) deletePOST(w http.ResponseWriter, r *http.Request) {
	if !component.VerifyCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}
	ctl, ps, ok := c.prefilled(w, r)
	if !ok {
		return
	}
	_, err := ctl.Delete(r.Context())
	if err != nil && !form.IsUnauthenticated(err) {
		_, notice := ps.snapshot()
		c.d.Redirect(w, r, formAction(ctl.Def().Kind, ctl.RecordID()), notice)
		return
	}
	if err == nil && ctl.Def().Kind == form.KindProfile && c.d.Sessions != nil {
		c.d.Sessions.Logout(w)
	}
	c.finish(w, r, ctl, ps, err)
}

// validate checks the posted fields without submitting.  Only fields present
// in the body are reported.
func (c *Component) validate(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	mode, id := form.ModeCreate, ""
	if r.URL.Query().Get("mode") == form.ModeUpdate.String() {
		mode, id = form.ModeUpdate, liveRecordID
	}
	ctl, _, err := c.controller(r, kind, mode, id)
	if err != nil {
		component.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := form.DraftFromRequest(ctl, r); err != nil {
		component.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := liveResult{Valid: true, Errors: []liveError{}}
	for _, ef := range ctl.View("").Errors.List() {
		res.Valid = false
		res.Errors = append(res.Errors, liveError{Field: ef.Name, Error: ef.Message})
	}
	component.JSON(w, http.StatusOK, res)
}

func (c *Component) list(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok || !listed(kind) {
		http.NotFound(w, r)
		return
	}
	def, _ := form.Lookup(kind)
	actor, signedIn := auth.ActorID(r.Context())
	if def.RequiresActor && !signedIn {
		c.d.Redirect(w, r, def.LoginRoute+"?next="+r.URL.Path, &form.Notice{
			Level: form.NoticeWarning, Title: "Login required", Text: form.MsgLoginRequired,
		})
		return
	}

	snaps, err := c.d.Backend.List(r.Context(), kind, actor)
	if err != nil {
		logger.FromContext(r.Context()).Warnw("list failed", "kind", kind, "err", err)
		p := c.d.Page(w, r, def.Title+"s", listPage{NewURL: formAction(kind, "")})
		p.Notice = &form.Notice{Level: form.NoticeError, Title: "Error", Text: userMessage(err)}
		c.d.Render(w, r, http.StatusBadGateway, "list", p)
		return
	}

	rows := make([]listRow, 0, len(snaps))
	for _, s := range snaps {
		rows = append(rows, listRow{
			ID:      s.ID,
			Name:    s.Values[def.NameField],
			EditURL: formAction(kind, s.ID),
		})
	}
	c.d.Render(w, r, http.StatusOK, "list",
		c.d.Page(w, r, def.Title+"s", listPage{NewURL: formAction(kind, ""), Rows: rows}))
}

func userMessage(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return form.FallbackMessage
}
