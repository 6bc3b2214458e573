// Package datarecording stores trace entries in SQLite databases and reads
// them back.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/demandpaging/sim"
)

// ErrInvalidEntry is returned when an entry has a field that cannot be stored
// in a column.
var ErrInvalidEntry = errors.New("entry is invalid")

// DefaultBatchSize is how many entries are buffered before a flush.
const DefaultBatchSize = 100000

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of the tables created by the recorder.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and closes the database.
	Close() error
}

// New creates a DataRecorder that writes to path.sqlite3. An empty path picks
// a unique name. The recorder is flushed when the program exits through
// atexit.
func New(path string) DataRecorder {
	if path == "" {
		path = sim.UniqueName("demandpaging_trace_")
	}

	filename := path + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	// Opening is lazy; the first connection creates the file.
	if err := db.Ping(); err != nil {
		panic(err)
	}

	fmt.Fprintf(os.Stderr, "Recording trace to %s\n", filename)

	return NewWithDB(db)
}

// NewWithDB creates a DataRecorder that writes into db.
func NewWithDB(db *sql.DB) DataRecorder {
	r := &recorder{
		db:        db,
		batchSize: DefaultBatchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(r.Flush)

	return r
}

// A table buffers the rows of one entry type.
type table struct {
	entryType reflect.Type
	insertSQL string
	pending   [][]any
}

type recorder struct {
	lock sync.Mutex

	db        *sql.DB
	tables    map[string]*table
	batchSize int
	pending   int
	closed    bool
}

// columnType returns the SQLite column type that stores a field kind.
func columnType(kind reflect.Kind) (string, bool) {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "INTEGER", true
	case reflect.Float32, reflect.Float64:
		return "REAL", true
	case reflect.String:
		return "TEXT", true
	default:
		return "", false
	}
}

func columns(entry any) ([]string, error) {
	t := reflect.TypeOf(entry)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, ErrInvalidEntry
	}

	var cols []string

	for _, f := range structs.Fields(entry) {
		colType, ok := columnType(f.Kind())
		if !ok {
			return nil, fmt.Errorf("field %s: %w", f.Name(), ErrInvalidEntry)
		}

		cols = append(cols, f.Name()+" "+colType)
	}

	return cols, nil
}

func (r *recorder) CreateTable(tableName string, sampleEntry any) {
	r.lock.Lock()
	defer r.lock.Unlock()

	cols, err := columns(sampleEntry)
	if err != nil {
		panic(err)
	}

	r.mustExecute(fmt.Sprintf("CREATE TABLE %s (\n\t%s\n);",
		tableName, strings.Join(cols, ",\n\t")))

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	r.tables[tableName] = &table{
		entryType: reflect.TypeOf(sampleEntry),
		insertSQL: fmt.Sprintf("INSERT INTO %s VALUES (%s)",
			tableName, placeholders),
	}
}

func (r *recorder) InsertData(tableName string, entry any) {
	r.lock.Lock()
	defer r.lock.Unlock()

	t, exists := r.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.entryType {
		panic(fmt.Sprintf("entry of type %T does not fit table %s",
			entry, tableName))
	}

	t.pending = append(t.pending, structs.Values(entry))

	r.pending++
	if r.pending >= r.batchSize {
		r.flush()
	}
}

func (r *recorder) ListTables() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (r *recorder) Flush() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.flush()
}

func (r *recorder) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.flush()
	r.closed = true

	return r.db.Close()
}

func (r *recorder) flush() {
	if r.pending == 0 || r.closed {
		return
	}

	tx, err := r.db.Begin()
	if err != nil {
		panic(err)
	}

	for _, t := range r.tables {
		if len(t.pending) == 0 {
			continue
		}

		if err := insertRows(tx, t); err != nil {
			_ = tx.Rollback()
			panic(err)
		}

		t.pending = nil
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	r.pending = 0
}

func insertRows(tx *sql.Tx, t *table) error {
	stmt, err := tx.Prepare(t.insertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range t.pending {
		if _, err := stmt.Exec(row...); err != nil {
			return err
		}
	}

	return nil
}

func (r *recorder) mustExecute(query string) {
	if _, err := r.db.Exec(query); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute: %s\n", query)
		panic(err)
	}
}
