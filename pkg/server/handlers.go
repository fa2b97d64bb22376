package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/atomicdeploy/tablecrud/pkg/export"
	"github.com/atomicdeploy/tablecrud/pkg/render"
	"github.com/atomicdeploy/tablecrud/pkg/schema"
)

// handleIndex lists the editable tables
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, func(buf *bytes.Buffer) error {
		return s.renderer.Index(buf, schema.Tables())
	})
}

// handleHealth reports whether the database answers
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("Health check failed")
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// handleTable lists every row of a table
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(w, r)
	if !ok {
		return
	}
	rows, err := s.store.ListRows(r.Context(), t)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	d := t.Descriptor()
	s.page(w, r, func(buf *bytes.Buffer) error {
		return s.renderer.Table(buf, render.Capitalize(d.Name), d.Headers(), rows, "/"+d.Name, d.Name)
	})
}

// handleNew shows an empty form that submits as an insert
func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(w, r)
	if !ok {
		return
	}

	d := t.Descriptor()
	heading := fmt.Sprintf("%s, nowy rekord", render.Capitalize(d.Name))
	s.page(w, r, func(buf *bytes.Buffer) error {
		return s.renderer.Form(buf, heading, d.Fields, d.EmptyRecord(), fmt.Sprintf("/%s/0", d.Name))
	})
}

// handleEdit shows a form prefilled with one row
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	t, id, ok := s.tableAndID(w, r)
	if !ok {
		return
	}
	rec, err := s.store.GetRow(r.Context(), t, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	d := t.Descriptor()
	heading := fmt.Sprintf("%s, rekord: %d", render.Capitalize(d.Name), id)
	s.page(w, r, func(buf *bytes.Buffer) error {
		return s.renderer.Form(buf, heading, d.Fields, rec, fmt.Sprintf("/%s/%d", d.Name, id))
	})
}

// handleRecord shows one row read-only
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	t, id, ok := s.tableAndID(w, r)
	if !ok {
		return
	}
	rec, err := s.store.GetRow(r.Context(), t, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	d := t.Descriptor()
	heading := fmt.Sprintf("%s, rekord: %d", render.Capitalize(d.Name), id)
	s.page(w, r, func(buf *bytes.Buffer) error {
		return s.renderer.Record(buf, heading, d.Headers(), rec, "/"+d.Name)
	})
}

// handleSubmit inserts when id is 0 and updates otherwise, then redirects to the table
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	t, id, ok := s.tableAndID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	d := t.Descriptor()
	rec, err := d.RecordFromForm(r.PostForm)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ev := Event{Table: d.Name, ID: id}
	if id == 0 {
		newID, err := s.store.InsertRow(r.Context(), t, rec)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		ev.Type, ev.ID = EventInsert, newID
	} else {
		if err := s.store.UpdateRow(r.Context(), t, id, rec); err != nil {
			s.fail(w, r, err)
			return
		}
		ev.Type = EventUpdate
	}

	s.hub.Broadcast(ev)
	s.redirect(w, r, "/"+d.Name)
}

// handleRemove deletes the row named by the id query parameter
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteRow(r.Context(), t, id); err != nil {
		s.fail(w, r, err)
		return
	}

	s.hub.Broadcast(Event{Type: EventDelete, Table: t.String(), ID: id})
	s.redirect(w, r, "/"+t.String())
}

// handleExport downloads every row of a table as CSV or JSON
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(w, r)
	if !ok {
		return
	}

	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(export.FormatCSV)
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := s.store.ListRows(r.Context(), t)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.NewExporter(t).Write(&buf, format, rows); err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", t.String()+"."+string(format)))
	w.Write(buf.Bytes())
}

// handleWebSocket subscribes to change events, optionally for one table
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("table")
	if name != "" && !schema.Exists(name) {
		http.NotFound(w, r)
		return
	}
	s.hub.Subscribe(w, r, name)
}

func (s *Server) table(w http.ResponseWriter, r *http.Request) (schema.Table, bool) {
	t, ok := schema.Lookup(mux.Vars(r)["table"])
	if !ok {
		http.NotFound(w, r)
		return 0, false
	}
	return t, true
}

func (s *Server) tableAndID(w http.ResponseWriter, r *http.Request) (schema.Table, int64, bool) {
	t, ok := s.table(w, r)
	if !ok {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return 0, 0, false
	}
	return t, id, true
}

// page renders into a buffer so a failed template never sends a partial page
func (s *Server) page(w http.ResponseWriter, r *http.Request, fn func(buf *bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// redirect sends the browser back to url; htmx requests get an HX-Redirect header
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, url string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", url)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// fail maps err to a status code
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, schema.ErrNotFound):
		http.NotFound(w, r)
	case errors.Is(err, schema.ErrInvalidValue):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
