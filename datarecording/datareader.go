package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
)

// QueryParams narrows down and orders a query.
type QueryParams struct {
	// Where is a condition without the WHERE keyword, such as
	// "Time > ? AND Kind = ?".
	Where string
	Args  []any

	// OrderBy is a column list without the ORDER BY keywords.
	OrderBy string

	// Limit caps the number of rows returned. Zero means no limit. Offset
	// only applies with a limit.
	Limit  int
	Offset int
}

// DataReader reads back what a DataRecorder stored.
type DataReader interface {
	// MapTable tells the reader which struct the rows of a table decode
	// into. A table must be mapped before it is queried.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the tables of the database ordered by name.
	ListTables(ctx context.Context) ([]string, error)

	// CountRows returns the number of rows of a table.
	CountRows(ctx context.Context, tableName string) (int, error)

	// Query returns pointers to the decoded rows that match params, and the
	// number of matching rows regardless of the limit.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	Close() error
}

type reader struct {
	db      *sql.DB
	mapping map[string]reflect.Type
}

// NewReader opens a trace database for reading.
func NewReader(dbFilename string) (DataReader, error) {
	db, err := sql.Open("sqlite3", dbFilename)
	if err != nil {
		return nil, err
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a DataReader on an open database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &reader{
		db:      db,
		mapping: make(map[string]reflect.Type),
	}
}

func (r *reader) MapTable(tableName string, sampleEntry any) {
	r.mapping[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *reader) ListTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}

		names = append(names, name)
	}

	return names, rows.Err()
}

func (r *reader) CountRows(ctx context.Context, tableName string) (int, error) {
	return r.count(ctx, tableName, QueryParams{})
}

func (r *reader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	entryType, mapped := r.mapping[tableName]
	if !mapped {
		return nil, 0, fmt.Errorf("table %s is not mapped", tableName)
	}

	total, err := r.count(ctx, tableName, params)
	if err != nil {
		return nil, 0, err
	}

	var q strings.Builder
	q.WriteString(selectFrom("*", tableName, params))

	if params.OrderBy != "" {
		fmt.Fprintf(&q, " ORDER BY %s", params.OrderBy)
	}

	if params.Limit > 0 {
		fmt.Fprintf(&q, " LIMIT %d OFFSET %d", params.Limit, params.Offset)
	}

	rows, err := r.db.QueryContext(ctx, q.String(), params.Args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results, err := decodeRows(rows, entryType)
	if err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

func (r *reader) count(
	ctx context.Context,
	tableName string,
	params QueryParams,
) (int, error) {
	var n int

	err := r.db.QueryRowContext(ctx,
		selectFrom("COUNT(*)", tableName, params), params.Args...).Scan(&n)

	return n, err
}

func selectFrom(what, tableName string, params QueryParams) string {
	q := fmt.Sprintf("SELECT %s FROM %s", what, tableName)
	if params.Where != "" {
		q += " WHERE " + params.Where
	}

	return q
}

// decodeRows decodes every row into a new entry of entryType. Columns without
// a field of the same name are skipped.
func decodeRows(rows *sql.Rows, entryType reflect.Type) ([]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []any

	for rows.Next() {
		entry := reflect.New(entryType)
		dest := make([]any, len(cols))

		for i, col := range cols {
			field := entry.Elem().FieldByName(col)
			if field.IsValid() && field.CanSet() {
				dest[i] = field.Addr().Interface()
				continue
			}

			dest[i] = new(any)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		results = append(results, entry.Interface())
	}

	return results, rows.Err()
}

func (r *reader) Close() error {
	return r.db.Close()
}
