package render

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomicdeploy/tablecrud/pkg/schema"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(Options{Title: "Kadry"})
	require.NoError(t, err)
	return r
}

func TestIndex(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newRenderer(t).Index(&buf, schema.Tables()))

	html := buf.String()
	assert.Contains(t, html, "<title>Kadry</title>")
	assert.Contains(t, html, `<a href="/pracownicy">Pracownicy</a>`)
	assert.Contains(t, html, `<a href="/zespoly">Zespoly</a>`)
	assert.Less(t, strings.Index(html, "/kontraktorzy"), strings.Index(html, "/zespoly"))
}

func TestTableHeaderOnlyWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	d := schema.Employees.Descriptor()
	require.NoError(t, newRenderer(t).Table(&buf, "Pracownicy", d.Headers(), nil, "/pracownicy", ""))

	html := buf.String()
	assert.Equal(t, 1, strings.Count(html, "<tr"), "only the header row")
	assert.Contains(t, html, "<th>Data zatrudnienia</th>")
	assert.Contains(t, html, "<th>Akcje</th>")
	assert.Contains(t, html, `href="/pracownicy/new"`)
	assert.NotContains(t, html, "WebSocket")
}

func TestTableRows(t *testing.T) {
	var buf bytes.Buffer
	rows := []schema.Record{
		{int64(1), "Backend", "IT"},
		{int64(2), "<script>", nil},
	}
	require.NoError(t, newRenderer(t).Table(&buf, "Zespoly", schema.Teams.Descriptor().Headers(), rows, "/zespoly/", "zespoly"))

	html := buf.String()
	assert.Equal(t, 3, strings.Count(html, "<tr"))
	assert.Contains(t, html, `href="/zespoly/edit/1"`)
	assert.Contains(t, html, `hx-delete="/zespoly/remove?id=2"`)
	assert.Contains(t, html, `hx-confirm=`)
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "<td><script>")
	assert.Contains(t, html, "/ws?table=zespoly")
}

func TestRecord(t *testing.T) {
	var buf bytes.Buffer
	d := schema.Teams.Descriptor()
	require.NoError(t, newRenderer(t).Record(&buf, "Zespoly, rekord: 4", d.Headers(), schema.Record{int64(4), "Ops", "IT"}, "/zespoly"))

	html := buf.String()
	assert.Contains(t, html, `<th scope="row">Nazwa</th><td>Ops</td>`)
	assert.Contains(t, html, `href="/zespoly/edit/4"`)

	err := newRenderer(t).Record(&buf, "x", d.Headers(), schema.Record{int64(1)}, "/zespoly")
	assert.Error(t, err)
}

func TestFormHiddenFieldHasNoLabel(t *testing.T) {
	var buf bytes.Buffer
	d := schema.Teams.Descriptor()
	values := schema.Record{int64(3), "Ops", "IT"}
	require.NoError(t, newRenderer(t).Form(&buf, "Zespoly, rekord: 3", d.Fields, values, "/zespoly/3"))

	html := buf.String()
	assert.Contains(t, html, `action="/zespoly/3" method="POST"`)
	assert.NotContains(t, html, `for="idzespol"`)
	assert.Contains(t, html, `value="3" name="idzespol" id="idzespol" type="hidden"`)
	assert.Contains(t, html, `<label class="label" for="nazwa">Nazwa</label>`)
	assert.Contains(t, html, `value="Ops" name="nazwa" id="nazwa" type="text"`)
	assert.Equal(t, 2, strings.Count(html, "<label"))
	assert.Contains(t, html, `type="submit" value="Zapisz"`)
}

func TestFormEmptyRecord(t *testing.T) {
	var buf bytes.Buffer
	d := schema.Contractors.Descriptor()
	require.NoError(t, newRenderer(t).Form(&buf, "Kontraktorzy, nowy rekord", d.Fields, d.EmptyRecord(), "/kontraktorzy/0"))

	html := buf.String()
	assert.Equal(t, len(d.Fields)+1, strings.Count(html, "<input"))
	assert.Contains(t, html, `value="" name="data_zatrudn" id="data_zatrudn" type="date"`)
	assert.Contains(t, html, `value="" name="plec" id="plec" type="radio"`)
}

func TestFormPrefillsRadioAndDecimals(t *testing.T) {
	var buf bytes.Buffer
	d := schema.Contractors.Descriptor()
	values := schema.Record{int64(1), "Jan", "Kowalski", int64(2), "2020-01-15", 12.5, "M"}
	require.NoError(t, newRenderer(t).Form(&buf, "Kontraktorzy, rekord: 1", d.Fields, values, "/kontraktorzy/1"))

	html := buf.String()
	assert.Contains(t, html, `value="M" name="plec" id="plec" type="radio" class="input" checked`)
	assert.Contains(t, html, `value="12.5" name="stawka_godzinowa" id="stawka_godzinowa" type="number" class="input" step="any"`)
	assert.NotContains(t, html, `type="text" class="input" step="any"`)
}

func TestFormEmptyRadioUnchecked(t *testing.T) {
	var buf bytes.Buffer
	d := schema.Contractors.Descriptor()
	require.NoError(t, newRenderer(t).Form(&buf, "Kontraktorzy, nowy rekord", d.Fields, d.EmptyRecord(), "/kontraktorzy/0"))

	assert.NotContains(t, buf.String(), " checked")
}

func TestFormWidthMismatch(t *testing.T) {
	var buf bytes.Buffer
	err := newRenderer(t).Form(&buf, "x", schema.Teams.Descriptor().Fields, schema.Record{}, "/zespoly/0")
	assert.Error(t, err)
}

func TestNoticeIsSanitized(t *testing.T) {
	r, err := New(Options{Notice: `<b>Uwaga</b><script>alert(1)</script>`})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Index(&buf, nil))
	assert.Contains(t, buf.String(), "<b>Uwaga</b>")
	assert.NotContains(t, buf.String(), "alert(1)")
	assert.Contains(t, buf.String(), "<title>CRUD Application</title>")
}

func TestTemplatesFromDirAndReload(t *testing.T) {
	dir := t.TempDir()
	write := func(body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(body), 0644))
	}
	write(`v1 {{ heading }}`)

	r, err := New(Options{Dir: dir})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Index(&buf, nil))
	assert.Equal(t, "v1 Tables", buf.String())

	write(`v2 {{ heading }}`)
	buf.Reset()
	require.NoError(t, r.Index(&buf, nil))
	assert.Equal(t, "v1 Tables", buf.String(), "cached until reload")

	r.Reload()
	buf.Reset()
	require.NoError(t, r.Index(&buf, nil))
	assert.Equal(t, "v2 Tables", buf.String())
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Pracownicy", Capitalize("pracownicy"))
	assert.Equal(t, "Łódź", Capitalize("łódź"))
}
