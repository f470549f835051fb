// internal/view/render.go
//
// Central view engine: template lookup, override chain, func-map injection,
// and an LRU of parsed *template.Template* sets.
//
// Public helpers
// --------------
//   - Render         – write rendered HTML to an http.ResponseWriter.
//   - RenderToString – return template.HTML (fragments, tests).
//
// Lookup precedence (first hit wins), per file:
//   1. <override dir>/<name>.html
//   2. embedded templates/<name>.html
//
// Every page is parsed together with layout.html.  The page defines
// "content"; the layout defines "layout" and is what gets executed.
//
// Style
// -----
// • Oxford commas, two spaces after periods.

package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/yanizio/studyhub/internal/cache"
	"github.com/yanizio/studyhub/internal/form"
)

//go:embed templates/*.html
var embedded embed.FS

// Page is the data every template receives.
type Page struct {
	Title  string
	Actor  string
	CSRF   string
	Notice *form.Notice
	Data   any
}

// Renderer is safe for concurrent use.
type Renderer struct {
	dir string

	mu  sync.Mutex
	lru *cache.LRU // name → *template.Template
}

// New returns a Renderer.  overrideDir may be empty.
func New(overrideDir string) *Renderer {
	return &Renderer{dir: overrideDir, lru: cache.New(64)}
}

//
// public helpers
//

// Render executes page name and streams it to w with status.  The page is
// rendered into a buffer first so a template error never leaves a half page
// on the wire.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, p Page) error {
	var buf bytes.Buffer
	if err := r.execute(&buf, name, p); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// RenderToString executes page name and returns the markup.
func (r *Renderer) RenderToString(name string, p Page) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.execute(&buf, name, p); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func (r *Renderer) execute(buf *bytes.Buffer, name string, p Page) error {
	t, err := r.load(name)
	if err != nil {
		return err
	}
	return t.ExecuteTemplate(buf, "layout", p)
}

//
// internal: load
//

func (r *Renderer) load(name string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.lru.Get(name); ok {
		return v.(*template.Template), nil
	}

	t := template.New("layout").Funcs(funcMap())
	for _, file := range []string{"layout", name} {
		src, err := r.source(file)
		if err != nil {
			return nil, err
		}
		if _, err := t.Parse(string(src)); err != nil {
			return nil, fmt.Errorf("view: parse %s: %w", file, err)
		}
	}
	r.lru.Add(name, t)
	return t, nil
}

// source reads name.html from the override dir, else the embedded set.
func (r *Renderer) source(name string) ([]byte, error) {
	if r.dir != "" {
		b, err := os.ReadFile(filepath.Join(r.dir, name+".html"))
		if err == nil {
			return b, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	b, err := fs.ReadFile(embedded, "templates/"+name+".html")
	if err != nil {
		return nil, fmt.Errorf("view: template %q: %w", name, err)
	}
	return b, nil
}

//
// func-map builders
//

func funcMap() template.FuncMap {
	return template.FuncMap{
		"dict":     dict,
		"formHTML": form.Render,
	}
}

// dict builds a map in templates: {{ dict "k" 1 "k2" "v" }}.
func dict(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		m[key] = kv[i+1]
	}
	return m
}
