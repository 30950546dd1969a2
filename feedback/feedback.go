// Package feedback renders inline validation messages for form fields.
//
// Given a resource that exposes per-field error messages, Render produces
//
//	<div class="d-block invalid-feedback">is invalid and is too short</div>
//
// for a field with errors, and nothing for a field without.
package feedback

import (
	"context"
	"html/template"
	"io"
	"reflect"
	"strings"

	"github.com/a-h/templ"
	"github.com/drawpile/listform/sentence"
	"github.com/m-mizutani/goerr/v2"
)

// ErrNilResource is returned when asked to render feedback without a resource
var ErrNilResource = goerr.New("feedback resource is nil")

// Resource is anything carrying validation errors keyed by field name.
// ErrorsFor returns the messages for a field in order, or an empty slice.
type Resource interface {
	HasErrors() bool
	ErrorsFor(field string) []string
}

// KeyedResource can tell a field with no messages apart from a field
// that has no entry at all. A present but empty entry renders an empty
// container.
type KeyedResource interface {
	Resource
	HasKey(field string) bool
}

// DefaultClasses are the CSS classes of the feedback container
var DefaultClasses = []string{"d-block", "invalid-feedback"}

type Renderer struct {
	connectors sentence.Connectors
	classAttr  string
}

type Option func(*Renderer)

// WithConnectors sets the words used to join multiple messages
func WithConnectors(c sentence.Connectors) Option {
	return func(r *Renderer) {
		r.connectors = c
	}
}

// WithClasses replaces the container's CSS classes
func WithClasses(classes ...string) Option {
	return func(r *Renderer) {
		r.classAttr = strings.Join(classes, " ")
	}
}

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		connectors: sentence.English,
		classAttr:  strings.Join(DefaultClasses, " "),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRenderer = NewRenderer()

// For renders feedback with the default English renderer
func For(res Resource, field string) (template.HTML, error) {
	return defaultRenderer.Render(res, field)
}

// Render returns the feedback fragment for field, or an empty string if
// the resource has no errors for it. The resource is only read.
//
// A nil resource is ErrNilResource even when its type treats nil as
// empty, such as a nil *validation.Errors. Pass validation.NewErrors()
// for a form without errors.
func (r *Renderer) Render(res Resource, field string) (template.HTML, error) {
	if isNil(res) {
		return "", goerr.Wrap(ErrNilResource, "cannot render feedback", goerr.V("field", field))
	}

	if !res.HasErrors() {
		return "", nil
	}

	messages := res.ErrorsFor(field)
	if !hasEntry(res, field, messages) {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(`<div class="`)
	sb.WriteString(template.HTMLEscapeString(r.classAttr))
	sb.WriteString(`">`)
	sb.WriteString(template.HTMLEscapeString(sentence.Join(messages, r.connectors)))
	sb.WriteString(`</div>`)

	return template.HTML(sb.String()), nil
}

func hasEntry(res Resource, field string, messages []string) bool {
	if keyed, ok := res.(KeyedResource); ok {
		return keyed.HasKey(field)
	}
	return len(messages) > 0
}

// isNil also catches typed nil pointers stored in the interface
func isNil(res Resource) bool {
	if res == nil {
		return true
	}
	v := reflect.ValueOf(res)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// FuncMap exposes the renderer to html/template as feedback_for:
//
//	{{ feedback_for .Errors "email" }}
func (r *Renderer) FuncMap() template.FuncMap {
	return template.FuncMap{
		"feedback_for": r.Render,
	}
}

// Component renders the same fragment as a templ component. Nothing is
// written when the field has no errors.
func (r *Renderer) Component(res Resource, field string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		fragment, err := r.Render(res, field)
		if err != nil || fragment == "" {
			return err
		}
		_, err = io.WriteString(w, string(fragment))
		return err
	})
}
