package schema

import (
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExists(t *testing.T) {
	for _, name := range []string{"kontraktorzy", "pracownicy", "stanowiska", "zespoly"} {
		assert.True(t, Exists(name), name)
	}
	for _, name := range []string{"", "zespoły", "Pracownicy", "users", "pracownicy "} {
		assert.False(t, Exists(name), name)
	}
}

func TestDescribe(t *testing.T) {
	d, err := Describe("pracownicy")
	require.NoError(t, err)
	assert.Equal(t, "idprac", d.PrimaryKey)
	assert.Len(t, d.Fields, 9)

	_, err = Describe("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPrimaryKeyIsFirstHiddenField(t *testing.T) {
	for _, tbl := range Tables() {
		d := tbl.Descriptor()
		require.NotEmpty(t, d.Fields, tbl.String())
		assert.Equal(t, d.PrimaryKey, d.Fields[0].Name, tbl.String())
		assert.True(t, d.Fields[0].Hidden(), tbl.String())
		assert.True(t, d.Fields[0].Required, tbl.String())
	}
}

func TestTablesSortedByName(t *testing.T) {
	var names []string
	for _, tbl := range Tables() {
		names = append(names, tbl.String())
	}
	want := []string{"kontraktorzy", "pracownicy", "stanowiska", "zespoly"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Tables() mismatch (-want +got):\n%s", diff)
	}
}

func TestLookupRoundTrip(t *testing.T) {
	for _, tbl := range Tables() {
		got, ok := Lookup(tbl.String())
		require.True(t, ok)
		assert.Equal(t, tbl, got)
		assert.True(t, got.Valid())
	}
	assert.False(t, Table(0).Valid())
	assert.Equal(t, "Table(0)", Table(0).String())
}

func TestHeadersAndColumns(t *testing.T) {
	d := Teams.Descriptor()
	if diff := cmp.Diff([]string{"ID", "Nazwa", "Dział"}, d.Headers()); diff != "" {
		t.Errorf("Headers() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"idzespol", "nazwa", "dzial"}, d.Columns()); diff != "" {
		t.Errorf("Columns() mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordFromForm(t *testing.T) {
	d := Employees.Descriptor()
	values := url.Values{
		"idprac":        {"7"},
		"imie":          {"Anna"},
		"nazwisko":      {"Nowak"},
		"stanowisko":    {"2"},
		"przelozony":    {"1"},
		"data_zatrudn":  {"2021-03-15"},
		"zespol":        {"3"},
		"wynagrodzenie": {"4500.50"},
		"plec":          {""},
	}

	rec, err := d.RecordFromForm(values)
	require.NoError(t, err)
	require.Len(t, rec, len(d.Fields))

	want := Record{int64(7), "Anna", "Nowak", int64(2), int64(1), "2021-03-15", int64(3), 4500.5, nil}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("RecordFromForm mismatch (-want +got):\n%s", diff)
	}

	key, ok := rec.Key()
	assert.True(t, ok)
	assert.Equal(t, int64(7), key)
}

func TestRecordFromFormEmptyKey(t *testing.T) {
	rec, err := Teams.Descriptor().RecordFromForm(url.Values{
		"idzespol": {""},
		"nazwa":    {"Backend"},
		"dzial":    {"IT"},
	})
	require.NoError(t, err)
	assert.Nil(t, rec[0])

	_, ok := rec.Key()
	assert.False(t, ok)
}

func TestRecordFromFormInvalidNumber(t *testing.T) {
	_, err := Positions.Descriptor().RecordFromForm(url.Values{
		"idstanow":  {"1"},
		"nazwa":     {"Tester"},
		"placa_min": {"dużo"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidValue))

	for _, raw := range []string{"NaN", "Inf", "+Inf", "-infinity"} {
		_, err := Positions.Descriptor().RecordFromForm(url.Values{
			"idstanow":  {""},
			"nazwa":     {"Tester"},
			"placa_min": {raw},
		})
		assert.ErrorIs(t, err, ErrInvalidValue, raw)
	}
}

func TestRecordFromFormInvalidDate(t *testing.T) {
	_, err := Contractors.Descriptor().RecordFromForm(url.Values{
		"idkontr":      {"1"},
		"imie":         {"Jan"},
		"nazwisko":     {"Kowalski"},
		"przelozony":   {"1"},
		"data_zatrudn": {"wczoraj"},
	})
	assert.True(t, errors.Is(err, ErrInvalidValue))
}

func TestCoerceCheckbox(t *testing.T) {
	f := Field{Name: "aktywny", Type: InputCheckbox}

	v, err := coerce(f, "on", true)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = coerce(f, "", false)
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"abc", "abc"},
		{[]byte("xyz"), "xyz"},
		{int64(12), "12"},
		{4500.5, "4500.5"},
		{true, "1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in))
	}
}

func TestRecordKeyFromDriverValues(t *testing.T) {
	for _, v := range []any{int64(5), 5, "5", []byte("5"), float64(5)} {
		key, ok := Record{v}.Key()
		assert.True(t, ok, "%T", v)
		assert.Equal(t, int64(5), key)
	}
	_, ok := Record{}.Key()
	assert.False(t, ok)
	_, ok = Record{1.5}.Key()
	assert.False(t, ok)
}
