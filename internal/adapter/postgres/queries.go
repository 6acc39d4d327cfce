package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// queryColumns lists a table's columns in ordinal order.
// $1 = schema, $2 = table_name.
const queryColumns = `
	SELECT c.column_name, c.data_type
	FROM information_schema.columns c
	WHERE c.table_schema = $1 AND c.table_name = $2
	ORDER BY c.ordinal_position`

// queryDistinctValues has three %s placeholders: column, table, column.
// $1 = limit.
const queryDistinctValues = `
	SELECT DISTINCT %s::text
	FROM %s
	WHERE %s IS NOT NULL
	LIMIT $1`

// queryCountRows has one %s placeholder for the qualified table.
const queryCountRows = `SELECT COUNT(*) FROM %s`

// queryCountNonNull has two %s placeholders: column, table.
const queryCountNonNull = `SELECT COUNT(%s) FROM %s`

// querySampleRows has one %s placeholder for the qualified table.
// $1 = limit.
const querySampleRows = `SELECT * FROM %s LIMIT $1`

// qualifiedName returns the schema-qualified, quoted table reference. An
// empty schema leaves resolution to the search_path.
func qualifiedName(schema, table string) string {
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}

func quoteColumn(column string) string {
	return pgx.Identifier{column}.Sanitize()
}

// nullCountsQuery builds a single aggregate that returns the row count
// followed by the non-null count of every column, in order.
func nullCountsQuery(schema, table string, columns []string) string {
	var b strings.Builder
	b.WriteString("SELECT COUNT(*)")
	for _, c := range columns {
		fmt.Fprintf(&b, ", COUNT(%s)", quoteColumn(c))
	}
	fmt.Fprintf(&b, " FROM %s", qualifiedName(schema, table))
	return b.String()
}

func distinctValuesQuery(schema, table, column string) string {
	col := quoteColumn(column)
	return fmt.Sprintf(queryDistinctValues, col, qualifiedName(schema, table), col)
}
