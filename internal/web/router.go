// internal/web/router.go
//
// Root HTTP handler.
//
// Request life-cycle
// ------------------
//
//  1. chi RequestID and RealIP.
//  2. Request-scoped logger, panic recovery, and the request counter.
//  3. Security headers, then the optional HTTPS redirect.
//  4. Session cookie → actor on the request context.
//  5. Component routes (auth, forms, social) and /metrics.
//
// Components register themselves in init(); the blank imports below pull
// them into the binary.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/studyhub/internal/component"
	"github.com/yanizio/studyhub/internal/middleware"

	_ "github.com/yanizio/studyhub/components/auth"
	_ "github.com/yanizio/studyhub/components/forms"
	_ "github.com/yanizio/studyhub/components/social"
)

// Options tune the outer middleware.
type Options struct {
	ForceHTTPS bool
	ImgOrigins []string // extra CSP img-src origins, e.g. the backend
}

// NewRouter builds every registered component from d and wires the chain.
func NewRouter(d component.Deps, opts Options) (http.Handler, error) {
	if d.Logger == nil {
		d.Logger = zap.S()
	}
	comps, err := component.Build(d)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.Security(opts.ImgOrigins...))
	r.Use(middleware.ForceHTTPS(opts.ForceHTTPS))
	if d.Sessions != nil {
		r.Use(d.Sessions.Middleware)
	}

	r.Handle("/metrics", promhttp.Handler())
	for _, c := range comps {
		c.Routes(r)
		d.Logger.Debugw("component mounted", "component", c.Name())
	}
	return r, nil
}
