package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DB is the subset of *sql.DB the executors need. Narrowed for testability.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// DefaultMaxRows caps read_data result sets when no limit is configured.
const DefaultMaxRows = 10000

// ReadQueryResult is the envelope returned by read_data.
type ReadQueryResult struct {
	Success     bool             `json:"success"`
	Data        []map[string]any `json:"data"`
	RecordCount int              `json:"recordCount"`
	Truncated   bool             `json:"truncated,omitempty"`
	Timestamp   string           `json:"timestamp"`
}

// ListTablesResult is the envelope returned by list_table.
type ListTablesResult struct {
	Success   bool     `json:"success"`
	Tables    []string `json:"tables"`
	Count     int      `json:"count"`
	Timestamp string   `json:"timestamp"`
}

// ColumnInfo is one column of a describe_table result.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// DescribeTableResult is the envelope returned by describe_table.
type DescribeTableResult struct {
	Success     bool         `json:"success"`
	Columns     []ColumnInfo `json:"columns"`
	ColumnCount int          `json:"columnCount"`
	Timestamp   string       `json:"timestamp"`
}

// ErrorResult is the envelope returned for any failed operation.
type ErrorResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewErrorResult builds an error-flagged envelope from err.
func NewErrorResult(err error) ErrorResult {
	return ErrorResult{Success: false, Error: err.Error()}
}

// ExecuteReadQuery runs a validated SELECT statement verbatim and collects
// all rows up to maxRows (<=0 means DefaultMaxRows). The statement text
// itself is the input, so no parameterization is possible here.
func ExecuteReadQuery(ctx context.Context, db DB, args ReadQueryArgs, maxRows int) (*ReadQueryResult, error) {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	rows, err := db.QueryContext(ctx, args.Query)
	if err != nil {
		return nil, &ExecutionError{Op: OpReadData, Err: err}
	}
	defer rows.Close()

	data, truncated, err := scanRows(rows, maxRows)
	if err != nil {
		return nil, &ExecutionError{Op: OpReadData, Err: err}
	}

	return &ReadQueryResult{
		Success:     true,
		Data:        data,
		RecordCount: len(data),
		Truncated:   truncated,
		Timestamp:   now(),
	}, nil
}

// ListTables returns schema-qualified base table names, optionally filtered
// by the supplied schema names.
func ListTables(ctx context.Context, db DB, args ListTablesArgs) (*ListTablesResult, error) {
	rows, err := db.QueryContext(ctx, listTablesQuery(args.Parameters))
	if err != nil {
		return nil, &ExecutionError{Op: OpListTable, Err: err}
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var schema, name string
		if err := rows.Scan(&schema, &name); err != nil {
			return nil, &ExecutionError{Op: OpListTable, Err: err}
		}
		tables = append(tables, schema+"."+name)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{Op: OpListTable, Err: err}
	}

	return &ListTablesResult{
		Success:   true,
		Tables:    tables,
		Count:     len(tables),
		Timestamp: now(),
	}, nil
}

// DescribeTable returns column name/type pairs for the named table. The table
// name is bound as a query parameter, never interpolated. A table that does
// not exist yields an empty column list, not an error.
func DescribeTable(ctx context.Context, db DB, args DescribeTableArgs) (*DescribeTableResult, error) {
	rows, err := db.QueryContext(ctx, describeTableQuery, sql.Named("p1", args.TableName))
	if err != nil {
		return nil, &ExecutionError{Op: OpDescribeTable, Err: err}
	}
	defer rows.Close()

	columns := []ColumnInfo{}
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.Name, &col.Type); err != nil {
			return nil, &ExecutionError{Op: OpDescribeTable, Err: err}
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{Op: OpDescribeTable, Err: err}
	}

	return &DescribeTableResult{
		Success:     true,
		Columns:     columns,
		ColumnCount: len(columns),
		Timestamp:   now(),
	}, nil
}

// describeTableQuery binds the table name at @p1.
const describeTableQuery = `SELECT COLUMN_NAME, DATA_TYPE FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_NAME = @p1 ORDER BY ORDINAL_POSITION`

// listTablesQuery builds the catalog query for base tables. Schema names are
// interpolated as quoted literals rather than bound parameters; embedded
// quotes are doubled so a name cannot terminate the literal. Acceptable only
// while schema names come from a constrained internal vocabulary.
func listTablesQuery(schemas []string) string {
	var b strings.Builder
	b.WriteString(`SELECT TABLE_SCHEMA, TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE'`)
	if len(schemas) > 0 {
		quoted := make([]string, len(schemas))
		for i, s := range schemas {
			quoted[i] = "'" + strings.ReplaceAll(s, "'", "''") + "'"
		}
		fmt.Fprintf(&b, " AND TABLE_SCHEMA IN (%s)", strings.Join(quoted, ", "))
	}
	b.WriteString(" ORDER BY TABLE_SCHEMA, TABLE_NAME")
	return b.String()
}

// scanRows collects up to maxRows rows into generic maps. []byte values are
// coerced to strings so the envelope serializes as JSON text rather than
// base64.
func scanRows(rows *sql.Rows, maxRows int) ([]map[string]any, bool, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, false, err
	}

	data := []map[string]any{}
	truncated := false
	for rows.Next() {
		if len(data) >= maxRows {
			truncated = true
			break
		}

		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, false, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return data, truncated, nil
}

// now formats completion timestamps the same way across all envelopes.
func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
