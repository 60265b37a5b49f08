package handlers

import (
	"bytes"
	"fmt"
	"text/template"
	"io/fs"
	"net/http"
)

// PageNames lists the dashboard pages; each has <name>.html in the page FS.
var PageNames = []string{"index", "timeline", "graph", "settings", "db"}

var pageTitles = map[string]string{
	"index":    "Overview",
	"timeline": "Timeline",
	"graph":    "Knowledge graph",
	"settings": "Settings",
	"db":       "Memory DB",
}

// Pages holds every page rendered once at startup. Template data is limited
// to constant page names and titles; inline scripts fetch the JSON API.
type Pages struct {
	rendered map[string][]byte
}

// NewPages parses layout.html with each page file and renders them.
func NewPages(fsys fs.FS) (*Pages, error) {
	p := &Pages{rendered: make(map[string][]byte, len(PageNames))}
	for _, name := range PageNames {
		tmpl, err := template.ParseFS(fsys, "layout.html", name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		var buf bytes.Buffer
		data := struct{ Page, Title string }{name, pageTitles[name]}
		if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
			return nil, fmt.Errorf("render page %s: %w", name, err)
		}
		p.rendered[name] = buf.Bytes()
	}
	return p, nil
}

// Handler serves the named page.
func (p *Pages) Handler(name string) http.HandlerFunc {
	body, ok := p.rendered[name]
	return func(w http.ResponseWriter, r *http.Request) {
		if !ok {
			NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}
