// internal/component/deps.go
package component

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/studyhub/internal/form"
	"github.com/yanizio/studyhub/internal/localstore"
	"github.com/yanizio/studyhub/internal/session"
	"github.com/yanizio/studyhub/internal/view"
)

// Backend is the REST surface components use.  *api.Client satisfies it.
type Backend interface {
	form.Backend
	List(ctx context.Context, kind form.Kind, actorID string) ([]form.Snapshot, error)
	Login(ctx context.Context, email, password string) (string, error)
}

// Deps are the process-wide resources handed to every Factory.
type Deps struct {
	Backend       Backend
	Notifications *localstore.Notifications
	Social        *localstore.Social
	Sessions      *session.Manager
	Views         *view.Renderer
	Logger        *zap.SugaredLogger

	RefDate time.Time     // zero means the wall clock
	Timeout time.Duration // backend call bound; zero means form.DefaultTimeout
}
