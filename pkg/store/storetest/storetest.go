// Package storetest provides an in-memory SQLite store with the compiled-in
// tables created, for tests in other packages.
package storetest

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"

	"github.com/atomicdeploy/tablecrud/pkg/store"

	_ "modernc.org/sqlite"
)

// DDL creates the four tables in SQLite syntax
const DDL = `
CREATE TABLE kontraktorzy (
	idkontr INTEGER PRIMARY KEY AUTOINCREMENT,
	imie TEXT NOT NULL,
	nazwisko TEXT NOT NULL,
	przelozony INTEGER NOT NULL,
	data_zatrudn DATE,
	stawka_godzinowa REAL,
	plec TEXT
);

CREATE TABLE pracownicy (
	idprac INTEGER PRIMARY KEY AUTOINCREMENT,
	imie TEXT NOT NULL,
	nazwisko TEXT NOT NULL,
	stanowisko INTEGER NOT NULL,
	przelozony INTEGER NOT NULL,
	data_zatrudn DATE,
	zespol INTEGER NOT NULL,
	wynagrodzenie REAL,
	plec TEXT
);

CREATE TABLE stanowiska (
	idstanow INTEGER PRIMARY KEY AUTOINCREMENT,
	nazwa TEXT NOT NULL,
	placa_min REAL,
	placa_max REAL
);

CREATE TABLE zespoly (
	idzespol INTEGER PRIMARY KEY AUTOINCREMENT,
	nazwa TEXT NOT NULL,
	dzial TEXT NOT NULL
);
`

// New returns a store over a fresh in-memory database. It is closed when the test ends.
func New(t testing.TB) *store.Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(DDL); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}

	return store.New(db, store.SQLite, zerolog.Nop())
}
