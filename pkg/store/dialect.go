package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/atomicdeploy/tablecrud/pkg/config"
	"github.com/atomicdeploy/tablecrud/pkg/schema"
)

// Dialect captures the SQL syntax differences between supported drivers
type Dialect struct {
	Driver    string
	numbered  bool // $1, $2 instead of ?
	quote     string
	returning bool // INSERT ... RETURNING instead of LastInsertId
}

var (
	MySQL    = Dialect{Driver: config.DriverMySQL, quote: "`"}
	Postgres = Dialect{Driver: config.DriverPostgres, numbered: true, quote: `"`, returning: true}
	SQLite   = Dialect{Driver: config.DriverSQLite, quote: `"`}
)

// DialectFor returns the dialect for a configured driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case config.DriverMySQL:
		return MySQL, nil
	case config.DriverPostgres:
		return Postgres, nil
	case config.DriverSQLite:
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported driver: %s", driver)
}

// Placeholder returns the bind marker for the n-th (1-based) argument
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Quote quotes an identifier
func (d Dialect) Quote(ident string) string {
	return d.quote + strings.ReplaceAll(ident, d.quote, d.quote+d.quote) + d.quote
}

func (d Dialect) quoteAll(idents []string) string {
	quoted := make([]string, len(idents))
	for i, ident := range idents {
		quoted[i] = d.Quote(ident)
	}
	return strings.Join(quoted, ", ")
}

func (d Dialect) selectQuery(td *schema.TableDescriptor) string {
	return fmt.Sprintf("SELECT %s FROM %s", d.quoteAll(td.Columns()), d.Quote(td.Name))
}

func (d Dialect) selectOneQuery(td *schema.TableDescriptor) string {
	return fmt.Sprintf("%s WHERE %s = %s", d.selectQuery(td), d.Quote(td.PrimaryKey), d.Placeholder(1))
}

func (d Dialect) deleteQuery(td *schema.TableDescriptor) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s", d.Quote(td.Name), d.Quote(td.PrimaryKey), d.Placeholder(1))
}

// insertQuery leaves the primary key out so the store assigns it
func (d Dialect) insertQuery(td *schema.TableDescriptor) string {
	columns := td.Columns()[1:]
	marks := make([]string, len(columns))
	for i := range columns {
		marks[i] = d.Placeholder(i + 1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.Quote(td.Name), d.quoteAll(columns), strings.Join(marks, ", "))
	if d.returning {
		q += " RETURNING " + d.Quote(td.PrimaryKey)
	}
	return q
}

func (d Dialect) updateQuery(td *schema.TableDescriptor) string {
	columns := td.Columns()[1:]
	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = fmt.Sprintf("%s = %s", d.Quote(c), d.Placeholder(i+1))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		d.Quote(td.Name), strings.Join(sets, ", "), d.Quote(td.PrimaryKey), d.Placeholder(len(columns)+1))
}
