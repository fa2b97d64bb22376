package schema

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned for unknown tables and missing records
var ErrNotFound = errors.New("not found")

// InputType is the HTML form input type used to edit a column
type InputType string

const (
	InputCheckbox InputType = "checkbox"
	InputDate     InputType = "date"
	InputEmail    InputType = "email"
	InputHidden   InputType = "hidden"
	InputNumber   InputType = "number"
	InputPassword InputType = "password"
	InputRadio    InputType = "radio"
	InputText     InputType = "text"
)

// Field describes one column's display and input behavior
type Field struct {
	Name     string
	Header   string
	Type     InputType
	Required bool
}

// Hidden reports whether the field renders without a label
func (f Field) Hidden() bool {
	return f.Type == InputHidden
}

// TableDescriptor is the static metadata of one editable table.
// The primary key is always the first field.
type TableDescriptor struct {
	Name       string
	PrimaryKey string
	Fields     []Field
}

// Headers returns the display labels in column order
func (d *TableDescriptor) Headers() []string {
	headers := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		headers[i] = f.Header
	}
	return headers
}

// Columns returns the column names in declaration order
func (d *TableDescriptor) Columns() []string {
	columns := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		columns[i] = f.Name
	}
	return columns
}

// Table identifies one of the compiled-in tables
type Table int

const (
	Contractors Table = iota + 1
	Employees
	Positions
	Teams
)

var descriptors = map[Table]*TableDescriptor{
	Contractors: {
		Name:       "kontraktorzy",
		PrimaryKey: "idkontr",
		Fields: []Field{
			{"idkontr", "ID", InputHidden, true},
			{"imie", "Imię", InputText, true},
			{"nazwisko", "Nazwisko", InputText, true},
			{"przelozony", "Przełożony", InputNumber, true},
			{"data_zatrudn", "Data zatrudnienia", InputDate, false},
			{"stawka_godzinowa", "Stawka godzinowa", InputNumber, false},
			{"plec", "Płeć", InputRadio, false},
		},
	},
	Employees: {
		Name:       "pracownicy",
		PrimaryKey: "idprac",
		Fields: []Field{
			{"idprac", "ID", InputHidden, true},
			{"imie", "Imię", InputText, true},
			{"nazwisko", "Nazwisko", InputText, true},
			{"stanowisko", "Stanowisko", InputNumber, true},
			{"przelozony", "Przełożony", InputNumber, true},
			{"data_zatrudn", "Data zatrudnienia", InputDate, false},
			{"zespol", "Zespół", InputNumber, true},
			{"wynagrodzenie", "Wynagrodzenie", InputNumber, false},
			{"plec", "Płeć", InputRadio, false},
		},
	},
	Positions: {
		Name:       "stanowiska",
		PrimaryKey: "idstanow",
		Fields: []Field{
			{"idstanow", "ID", InputHidden, true},
			{"nazwa", "Nazwa", InputText, true},
			{"placa_min", "Wynagrodzenie minimalne", InputNumber, false},
			{"placa_max", "Wynagrodzenie maksymalne", InputNumber, false},
		},
	},
	Teams: {
		Name:       "zespoly",
		PrimaryKey: "idzespol",
		Fields: []Field{
			{"idzespol", "ID", InputHidden, true},
			{"nazwa", "Nazwa", InputText, true},
			{"dzial", "Dział", InputText, true},
		},
	},
}

var byName = func() map[string]Table {
	m := make(map[string]Table, len(descriptors))
	for t, d := range descriptors {
		m[d.Name] = t
	}
	return m
}()

// Descriptor returns the table's static description
func (t Table) Descriptor() *TableDescriptor {
	return descriptors[t]
}

// Valid reports whether t is one of the compiled-in tables
func (t Table) Valid() bool {
	_, ok := descriptors[t]
	return ok
}

func (t Table) String() string {
	if d, ok := descriptors[t]; ok {
		return d.Name
	}
	return fmt.Sprintf("Table(%d)", int(t))
}

// Lookup resolves a table identifier such as "pracownicy"
func Lookup(id string) (Table, bool) {
	t, ok := byName[id]
	return t, ok
}

// Exists reports whether id names a known table
func Exists(id string) bool {
	_, ok := byName[id]
	return ok
}

// Describe returns the descriptor for id, or ErrNotFound
func Describe(id string) (*TableDescriptor, error) {
	t, ok := byName[id]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", id, ErrNotFound)
	}
	return t.Descriptor(), nil
}

// Tables returns every known table sorted by name
func Tables() []Table {
	tables := make([]Table, 0, len(descriptors))
	for t := range descriptors {
		tables = append(tables, t)
	}
	sort.Slice(tables, func(i, j int) bool {
		return tables[i].String() < tables[j].String()
	})
	return tables
}
