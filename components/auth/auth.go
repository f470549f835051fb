// components/auth/auth.go
//
// studyhub authentication component: login and logout.
//
// Context
//   Credentials are checked by the REST backend (POST /login).  On success
//   the returned user id goes into a signed session cookie; the id is never
//   accepted from the client directly.
//
// Workflow
//   •  GET  /login   – render the login page.
//   •  POST /login   – CSRF check, input validation, backend login, redirect.
//   •  POST /logout  – CSRF check, clear the session, redirect to /login.
//
//------------------------------------------------------------------------------

package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/yanizio/studyhub/internal/component"
	"github.com/yanizio/studyhub/internal/form"
	"github.com/yanizio/studyhub/internal/logger"
)

// Compile-time assertion: *Component satisfies component.Component.
var _ component.Component = (*Component)(nil)

const badCredentials = "Incorrect email or password."

// Component encapsulates login functionality.
type Component struct {
	d        component.Deps
	validate *validator.Validate
}

type loginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type loginPage struct {
	Email string
	Error string
	Next  string
}

// Register component at program start.
func init() {
	component.Register("auth", func(d component.Deps) (component.Component, error) {
		if d.Sessions == nil {
			return nil, errors.New("auth needs a session manager")
		}
		return &Component{d: d, validate: validator.New()}, nil
	})
}

/*────────────────── component.Component methods ───────────────────────────*/

// Name returns the canonical component key.
func (c *Component) Name() string { return "auth" }

// Routes adds the login and logout endpoints.
func (c *Component) Routes(r chi.Router) {
	r.Get("/login", c.handleLoginGET)
	r.Post("/login", c.handleLoginPOST)
	r.Post("/logout", c.handleLogout)
}

/*──────────────────────────── Handlers ─────────────────────────────────────*/

func (c *Component) handleLoginGET(w http.ResponseWriter, r *http.Request) {
	c.d.Render(w, r, http.StatusOK, "login", c.d.Page(w, r, "Log in", loginPage{Next: r.URL.Query().Get("next")}))
}

func (c *Component) handleLoginPOST(w http.ResponseWriter, r *http.Request) {
	if !component.VerifyCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}
	in := loginInput{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	if err := c.validate.Struct(in); err != nil {
		c.fail(w, r, http.StatusUnprocessableEntity, in.Email, "Please enter your email and password.")
		return
	}

	id, err := c.d.Backend.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		logger.FromContext(r.Context()).Infow("login rejected", "email", in.Email, "err", err)
		c.fail(w, r, http.StatusUnauthorized, in.Email, loginMessage(err))
		return
	}

	c.d.Sessions.Login(w, r, id)
	c.d.Redirect(w, r, safeNext(r.URL.Query().Get("next")), &form.Notice{
		Level: form.NoticeSuccess, Title: "Welcome back", Text: "You are logged in.",
	})
}

func (c *Component) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !component.VerifyCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}
	c.d.Sessions.Logout(w)
	c.d.Redirect(w, r, "/login", nil)
}

func (c *Component) fail(w http.ResponseWriter, r *http.Request, status int, email, msg string) {
	c.d.Render(w, r, status, "login", c.d.Page(w, r, "Log in", loginPage{
		Email: email,
		Error: msg,
		Next:  r.URL.Query().Get("next"),
	}))
}

/*──────────────────────────── Helpers ─────────────────────────────────────*/

// loginMessage prefers the backend’s own wording.
func loginMessage(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return badCredentials
}

// safeNext allows only local absolute paths.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	return next
}
