package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/atomicdeploy/tablecrud/pkg/schema"
	"github.com/atomicdeploy/tablecrud/web"
)

// Options configures a Renderer
type Options struct {
	// Dir loads templates from disk instead of the embedded set
	Dir    string
	Title  string
	Notice string // HTML, sanitized
}

// Renderer turns schema and row data into HTML pages
type Renderer struct {
	mu        sync.RWMutex
	set       *pongo2.TemplateSet
	templates map[string]*pongo2.Template

	title  string
	notice string
}

// New creates a renderer over the embedded templates, or opts.Dir when set
func New(opts Options) (*Renderer, error) {
	var loader pongo2.TemplateLoader
	if opts.Dir != "" {
		l, err := pongo2.NewLocalFileSystemLoader(opts.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load templates from %s: %w", opts.Dir, err)
		}
		loader = l
	} else {
		loader = pongo2.NewFSLoader(web.Templates())
	}

	title := opts.Title
	if title == "" {
		title = "CRUD Application"
	}

	return &Renderer{
		set:       pongo2.NewSet("tablecrud", loader),
		templates: make(map[string]*pongo2.Template),
		title:     title,
		notice:    sanitizeNotice(opts.Notice),
	}, nil
}

// Reload drops every parsed template so the next render reads them again
func (r *Renderer) Reload() {
	r.mu.Lock()
	r.templates = make(map[string]*pongo2.Template)
	r.mu.Unlock()
}

// Capitalize upper-cases the first letter of a table name for headings
func Capitalize(s string) string {
	// a Caser keeps state, so one is made per call
	return cases.Title(language.Polish).String(s)
}

type tableLink struct {
	Name  string
	Label string
}

// Index renders the list of editable tables
func (r *Renderer) Index(w io.Writer, tables []schema.Table) error {
	links := make([]tableLink, len(tables))
	for i, t := range tables {
		links[i] = tableLink{Name: t.String(), Label: Capitalize(t.String())}
	}
	return r.execute(w, "index.html", pongo2.Context{
		"heading": "Tables",
		"tables":  links,
	})
}

type tableRow struct {
	ID    string
	Cells []string
}

// Table renders one row per record with edit and delete actions under actionPrefix.
// live names the table whose change feed the page subscribes to; empty disables it.
func (r *Renderer) Table(w io.Writer, heading string, headers []string, rows []schema.Record, actionPrefix, live string) error {
	viewRows := make([]tableRow, len(rows))
	for i, rec := range rows {
		cells := rec.Strings()
		id := ""
		if len(cells) > 0 {
			id = cells[0]
		}
		viewRows[i] = tableRow{ID: id, Cells: cells}
	}
	return r.execute(w, "table.html", pongo2.Context{
		"heading": heading,
		"headers": headers,
		"rows":    viewRows,
		"prefix":  strings.TrimSuffix(actionPrefix, "/"),
		"live":    live,
	})
}

type recordItem struct {
	Header string
	Value  string
}

// Record renders a single record as label/value pairs
func (r *Renderer) Record(w io.Writer, heading string, headers []string, rec schema.Record, actionPrefix string) error {
	if len(headers) != len(rec) {
		return fmt.Errorf("record has %d values for %d headers", len(rec), len(headers))
	}
	values := rec.Strings()
	items := make([]recordItem, len(values))
	for i, v := range values {
		items[i] = recordItem{Header: headers[i], Value: v}
	}
	id := ""
	if len(values) > 0 {
		id = values[0]
	}
	return r.execute(w, "record.html", pongo2.Context{
		"heading": heading,
		"items":   items,
		"id":      id,
		"prefix":  strings.TrimSuffix(actionPrefix, "/"),
	})
}

type formField struct {
	Name     string
	Header   string
	Type     string
	Value    string
	Hidden   bool
	Required bool
	Checked  bool
}

// Form renders one input per field, prefilled from values, submitting to submitURL.
// Hidden fields are rendered without a label.
func (r *Renderer) Form(w io.Writer, heading string, fields []schema.Field, values schema.Record, submitURL string) error {
	if len(fields) != len(values) {
		return fmt.Errorf("form has %d values for %d fields", len(values), len(fields))
	}
	viewFields := make([]formField, len(fields))
	for i, f := range fields {
		value := schema.FormatValue(values[i])
		ff := formField{
			Name:     f.Name,
			Header:   f.Header,
			Type:     string(f.Type),
			Value:    value,
			Hidden:   f.Hidden(),
			Required: f.Required,
		}
		switch f.Type {
		case schema.InputCheckbox:
			ff.Checked = value == "1"
			ff.Value = "on"
		case schema.InputRadio:
			// an unchecked radio is left out of the submitted form
			ff.Checked = value != ""
		}
		viewFields[i] = ff
	}
	return r.execute(w, "form.html", pongo2.Context{
		"heading": heading,
		"fields":  viewFields,
		"action":  submitURL,
	})
}

func (r *Renderer) execute(w io.Writer, name string, ctx pongo2.Context) error {
	tpl, err := r.template(name)
	if err != nil {
		return err
	}

	ctx["title"] = r.title
	ctx["notice"] = r.notice
	if err := tpl.ExecuteWriter(ctx, w); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return nil
}

func (r *Renderer) template(name string) (*pongo2.Template, error) {
	r.mu.RLock()
	tpl, ok := r.templates[name]
	r.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if tpl, ok := r.templates[name]; ok {
		return tpl, nil
	}
	tpl, err := r.set.FromFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", name, err)
	}
	r.templates[name] = tpl
	return tpl, nil
}

var (
	noticePolicyOnce sync.Once
	noticePolicy     *bluemonday.Policy
)

func sanitizeNotice(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	noticePolicyOnce.Do(func() {
		noticePolicy = bluemonday.UGCPolicy()
	})
	return strings.TrimSpace(noticePolicy.Sanitize(trimmed))
}
