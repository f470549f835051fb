package forms

import (
	"sync"

	"github.com/yanizio/studyhub/internal/form"
)

// pageState collects what a controller asks the UI to do during one
// request.  The handler turns it into a redirect or a re-rendered page.
type pageState struct {
	mu     sync.Mutex
	route  string
	notice *form.Notice
}

var (
	_ form.Navigator = (*pageState)(nil)
	_ form.Notifier  = (*pageState)(nil)
)

func (p *pageState) Navigate(route string) {
	p.mu.Lock()
	p.route = route
	p.mu.Unlock()
}

func (p *pageState) Notify(n form.Notice) {
	p.mu.Lock()
	p.notice = &n
	p.mu.Unlock()
}

func (p *pageState) snapshot() (string, *form.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.route, p.notice
}
