// components/social/social.go
//
// studyhub social component: likes, follows, comments, and the activity
// log.  Everything here is client-local state held in localstore; the REST
// backend is only asked for the record’s display name.
//
// Endpoints (JSON)
//   •  GET  /records/{kind}/{id}/social                  – counters + thread.
//   •  POST /records/{kind}/{id}/like                    – toggle like.
//   •  POST /records/{kind}/{id}/follow                  – toggle follow.
//   •  POST /records/{kind}/{id}/comments                – add comment.
//   •  POST /records/{kind}/{id}/comments/{cid}/edit     – edit own comment.
//   •  POST /records/{kind}/{id}/comments/{cid}/delete   – delete own comment.
//   •  GET  /notifications                               – activity log.
//   •  POST /notifications/clear                         – empty the log.
//
// Writes need a logged-in actor and a CSRF token (header or form value).
//
//------------------------------------------------------------------------------

package social

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/studyhub/internal/api"
	"github.com/yanizio/studyhub/internal/auth"
	"github.com/yanizio/studyhub/internal/component"
	"github.com/yanizio/studyhub/internal/form"
	"github.com/yanizio/studyhub/internal/localstore"
	"github.com/yanizio/studyhub/internal/logger"
)

var _ component.Component = (*Component)(nil)

// Component serves the local social endpoints.
type Component struct {
	d component.Deps
}

func init() {
	component.Register("social", func(d component.Deps) (component.Component, error) {
		if d.Social == nil || d.Notifications == nil {
			return nil, errors.New("social needs a local store")
		}
		return &Component{d: d}, nil
	})
}

func (c *Component) Name() string { return "social" }

func (c *Component) Routes(r chi.Router) {
	r.Route("/records/{kind}/{id}", func(rr chi.Router) {
		rr.Get("/social", c.summary)
		rr.With(c.writer).Post("/like", c.like)
		rr.With(c.writer).Post("/follow", c.follow)
		rr.With(c.writer).Post("/comments", c.addComment)
		rr.With(c.writer).Post("/comments/{cid}/edit", c.editComment)
		rr.With(c.writer).Post("/comments/{cid}/delete", c.deleteComment)
	})
	r.Get("/notifications", c.notifications)
	r.With(c.writer).Post("/notifications/clear", c.clearNotifications)
}

/*──────────────────────────── plumbing ────────────────────────────────────*/

// writer rejects anonymous or forged writes.
func (c *Component) writer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ActorID(r.Context()); !ok {
			component.JSONError(w, http.StatusUnauthorized, form.MsgLoginRequired)
			return
		}
		if !component.VerifyCSRF(r) {
			component.JSONError(w, http.StatusForbidden, "invalid CSRF token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// target resolves the record from the URL and asks the backend for its
// display name.  Writes to a record the backend does not have are a 404;
// any other failed lookup leaves the name empty.
func (c *Component) target(w http.ResponseWriter, r *http.Request) (localstore.Target, bool) {
	kind, err := form.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		component.JSONError(w, http.StatusNotFound, "unknown record kind")
		return localstore.Target{}, false
	}
	t := localstore.Target{Kind: string(kind), ID: chi.URLParam(r, "id")}
	if r.Method == http.MethodGet || c.d.Backend == nil {
		return t, true
	}

	actor, _ := auth.ActorID(r.Context())
	snap, err := c.d.Backend.Fetch(r.Context(), kind, t.ID, actor)
	switch {
	case errors.Is(err, api.ErrNotFound):
		component.JSONError(w, http.StatusNotFound, "record not found")
		return localstore.Target{}, false
	case err != nil:
		logger.FromContext(r.Context()).Debugw("record name lookup failed", "kind", kind, "id", t.ID, "err", err)
		return t, true
	}
	if def, ok := form.Lookup(kind); ok {
		t.Name = snap.Values[def.NameField]
	}
	return t, true
}

func actor(r *http.Request) string {
	id, _ := auth.ActorID(r.Context())
	return id
}

// storeError maps localstore errors onto HTTP statuses.
func storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, localstore.ErrEmptyComment), errors.Is(err, localstore.ErrCommentTooLong):
		component.JSONError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, localstore.ErrNotAuthor):
		component.JSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, localstore.ErrNotFound):
		component.JSONError(w, http.StatusNotFound, "comment not found")
	default:
		logger.FromContext(r.Context()).Errorw("local store failure", "err", err)
		component.JSONError(w, http.StatusInternalServerError, "local storage failed")
	}
}

/*──────────────────────────── handlers ────────────────────────────────────*/

func (c *Component) summary(w http.ResponseWriter, r *http.Request) {
	t, ok := c.target(w, r)
	if !ok {
		return
	}
	sum, err := c.d.Social.Summary(r.Context(), t, actor(r))
	if err != nil {
		storeError(w, r, err)
		return
	}
	component.JSON(w, http.StatusOK, sum)
}

func (c *Component) like(w http.ResponseWriter, r *http.Request) {
	t, ok := c.target(w, r)
	if !ok {
		return
	}
	on, n, err := c.d.Social.ToggleLike(r.Context(), t, actor(r))
	if err != nil {
		storeError(w, r, err)
		return
	}
	component.JSON(w, http.StatusOK, map[string]any{"liked": on, "likes": n})
}

func (c *Component) follow(w http.ResponseWriter, r *http.Request) {
	t, ok := c.target(w, r)
	if !ok {
		return
	}
	on, n, err := c.d.Social.ToggleFollow(r.Context(), t, actor(r))
	if err != nil {
		storeError(w, r, err)
		return
	}
	component.JSON(w, http.StatusOK, map[string]any{"following": on, "follows": n})
}

func (c *Component) addComment(w http.ResponseWriter, r *http.Request) {
	t, ok := c.target(w, r)
	if !ok {
		return
	}
	cm, err := c.d.Social.AddComment(r.Context(), t, actor(r), r.PostFormValue("text"))
	if err != nil {
		storeError(w, r, err)
		return
	}
	component.JSON(w, http.StatusCreated, cm)
}

func (c *Component) editComment(w http.ResponseWriter, r *http.Request) {
	t, ok := c.target(w, r)
	if !ok {
		return
	}
	err := c.d.Social.EditComment(r.Context(), t, chi.URLParam(r, "cid"), actor(r), r.PostFormValue("text"))
	if err != nil {
		storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Component) deleteComment(w http.ResponseWriter, r *http.Request) {
	t, ok := c.target(w, r)
	if !ok {
		return
	}
	if err := c.d.Social.DeleteComment(r.Context(), t, chi.URLParam(r, "cid"), actor(r)); err != nil {
		storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Component) notifications(w http.ResponseWriter, r *http.Request) {
	list, err := c.d.Notifications.List(r.Context())
	if err != nil {
		storeError(w, r, err)
		return
	}
	component.JSON(w, http.StatusOK, list)
}

func (c *Component) clearNotifications(w http.ResponseWriter, r *http.Request) {
	if err := c.d.Notifications.Clear(r.Context()); err != nil {
		storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
