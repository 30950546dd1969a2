package main

import (
	"embed"
	"html/template"
	"io"

	"github.com/drawpile/listform/db"
	"github.com/drawpile/listform/feedback"
	"github.com/drawpile/listform/sentence"
	"github.com/drawpile/listform/validation"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"index.html", "announce.html", "bans.html"}

type pageData struct {
	Title       string
	ServerName  string
	Description string
	Notice      string
	AdminUser   string
	Errors      *validation.Errors
	Form        interface{}
	Query       db.QueryOptions
	Sessions    []db.SessionInfo
	Bans        []db.HostBan
}

// Raw form values, echoed back into the inputs when a submission fails
type announceForm struct {
	Host     string
	Port     string
	Id       string
	Protocol string
	Title    string
	Owner    string
	Users    string
	Password bool
	Nsfm     bool
}

type hostBanForm struct {
	Host    string
	Expires string
	Notes   string
}

type views struct {
	pages map[string]*template.Template
}

func loadViews() (*views, error) {
	v := &views{pages: make(map[string]*template.Template)}
	funcs := viewFuncs(feedback.NewRenderer())

	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to parse template", goerr.V("name", name))
		}
		v.pages[name] = t
	}

	return v, nil
}

func viewFuncs(r *feedback.Renderer) template.FuncMap {
	funcs := r.FuncMap()
	funcs["field_class"] = fieldClass
	return funcs
}

// fieldClass marks an input as invalid when its field has messages
func fieldClass(res feedback.Resource, field string) string {
	if res != nil && res.HasErrors() && len(res.ErrorsFor(field)) > 0 {
		return "is-invalid"
	}
	return ""
}

// render executes a page. The page templates are never executed directly,
// only clones of them, so each render can bind its own feedback renderer.
func (v *views) render(w io.Writer, name string, connectors sentence.Connectors, data *pageData) error {
	page, ok := v.pages[name]
	if !ok {
		return goerr.New("unknown page", goerr.V("name", name))
	}

	t, err := page.Clone()
	if err != nil {
		return goerr.Wrap(err, "failed to clone template", goerr.V("name", name))
	}
	t.Funcs(viewFuncs(feedback.NewRenderer(feedback.WithConnectors(connectors))))

	if data.Errors == nil {
		data.Errors = validation.NewErrors()
	}

	return t.ExecuteTemplate(w, "layout.html", data)
}
