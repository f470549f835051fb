// internal/auth/context.go
//
// Actor-ID helper.  The session middleware attaches the logged-in user’s id
// to the request context; handlers and the form controller read it back.
//
// Usage
// -----
//     ctx = auth.WithActor(ctx, "42")
//     id, ok := auth.ActorID(ctx)   // "42", true
//
// Notes
// -----
// • Backend ids are opaque strings, so the actor is a string too.
// • form.ActorFunc(auth.ActorID) is the controller’s actor source.
// • Oxford commas, two spaces after periods.

package auth

import "context"

// actorKey is unexported to avoid context-key collisions.
type actorKey struct{}

// WithActor returns a new context carrying id.  An empty id yields ctx
// unchanged.
func WithActor(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, id)
}

// ActorID extracts the actor from ctx.  It returns ("", false) when nobody
// is logged in.
func ActorID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorKey{}).(string)
	return id, ok && id != ""
}
