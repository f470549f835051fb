// internal/component/page.go
//
// Request helpers shared by components: page scaffolding, flash notices,
// CSRF checks, and JSON replies.
package component

import (
	"encoding/json"
	"net/http"

	"github.com/yanizio/studyhub/internal/auth"
	"github.com/yanizio/studyhub/internal/form"
	"github.com/yanizio/studyhub/internal/logger"
	"github.com/yanizio/studyhub/internal/session"
	"github.com/yanizio/studyhub/internal/view"
)

// CSRFHeader lets script clients send the token without a form body.
const CSRFHeader = "X-CSRF-Token"

// Page builds the layout data for r: the actor, a fresh CSRF token, and any
// pending flash notice.
func (d Deps) Page(w http.ResponseWriter, r *http.Request, title string, data any) view.Page {
	p := view.Page{Title: title, Data: data}
	p.Actor, _ = auth.ActorID(r.Context())
	if tok, err := form.GenerateToken(); err == nil {
		p.CSRF = tok
	}
	if d.Sessions != nil {
		if f, ok := d.Sessions.PopFlash(w, r); ok {
			p.Notice = &form.Notice{Level: form.NoticeLevel(f.Level), Title: f.Title, Text: f.Text}
		}
	}
	return p
}

// Render writes page name, logging template failures as a 500.
func (d Deps) Render(w http.ResponseWriter, r *http.Request, status int, name string, p view.Page) {
	if err := d.Views.Render(w, status, name, p); err != nil {
		logger.FromContext(r.Context()).Errorw("render failed", "template", name, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// Redirect stores n as a flash notice and redirects to route with 303.
func (d Deps) Redirect(w http.ResponseWriter, r *http.Request, route string, n *form.Notice) {
	if n != nil && d.Sessions != nil {
		d.Sessions.SetFlash(w, session.Flash{Level: string(n.Level), Title: n.Title, Text: n.Text})
	}
	http.Redirect(w, r, route, http.StatusSeeOther)
}

// VerifyCSRF checks the X-CSRF-Token header, then the csrf_token form value.
func VerifyCSRF(r *http.Request) bool {
	if tok := r.Header.Get(CSRFHeader); tok != "" {
		return form.VerifyToken(tok)
	}
	return form.VerifyToken(r.PostFormValue("csrf_token"))
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError writes {"error": msg}.
func JSONError(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"error": msg})
}
