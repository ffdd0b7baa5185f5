// Copyright (c) 2026 gaestu
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

// Package store is the relational artifact store. It is a single SQLite
// database holding runs, the audit log, extracted file records, all parsed
// artifact tables, the cross-artifact URL registry and content-addressed
// images. One Store serves one investigation database.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/fatih/structs"
	"github.com/pkg/errors"
	"github.com/stoewer/go-strcase"
)

// Store wraps a single SQLite connection. The connection is not safe for
// concurrent use, so every operation takes the store mutex.
type Store struct {
	path string
	conn *sqlite.Conn
	mu   sync.Mutex
}

// Open opens an artifact store, creating the database and schema when the
// file does not exist yet. Opening a foreign SQLite file fails on the
// application id check.
func Open(path string) (*Store, error) {
	created := path == ":memory:"
	if !created {
		if _, err := os.Stat(path); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
				return nil, err
			}
			created = true
		}
	}

	conn, err := sqlite.OpenConn(path, 0)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open store")
	}
	s := &Store{path: path, conn: conn}

	if created {
		if err := s.setPragma("application_id", storeApplicationID); err != nil {
			return nil, err
		}
		if err := s.setPragma("user_version", storeVersion); err != nil {
			return nil, err
		}
	} else {
		applicationID, err := s.pragma("application_id")
		if err != nil {
			return nil, err
		}
		if applicationID != storeApplicationID {
			return nil, fmt.Errorf("wrong file format (application_id is %d, requires %d)",
				applicationID, storeApplicationID)
		}
		version, err := s.pragma("user_version")
		if err != nil {
			return nil, err
		}
		if version > storeVersion {
			return nil, fmt.Errorf("store version %d is newer than this build (%d)",
				version, storeVersion)
		}
	}

	if err := sqlitex.ExecScript(conn, schema); err != nil {
		return nil, errors.Wrap(err, "cannot apply store schema")
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

func (s *Store) pragma(name string) (int64, error) {
	stmt, err := s.conn.Prepare("PRAGMA " + name)
	if err != nil {
		return 0, err
	}
	if _, err := stmt.Step(); err != nil {
		return 0, err
	}
	i := stmt.GetInt64(name)
	return i, stmt.Finalize()
}

func (s *Store) setPragma(name string, i int64) error {
	stmt, err := s.conn.Prepare(fmt.Sprintf("PRAGMA %s = %d", name, i))
	if err != nil {
		return err
	}
	if _, err := stmt.Step(); err != nil {
		return err
	}
	return stmt.Finalize()
}

// exec runs a statement with positional arguments and discards rows. Callers
// hold the store mutex.
func (s *Store) exec(query string, args ...interface{}) error {
	stmt, err := s.conn.Prepare(query)
	if err != nil {
		return errors.Wrapf(err, "cannot prepare %s", query)
	}
	for i, arg := range args {
		if err := bindValue(stmt, i+1, arg); err != nil {
			stmt.Finalize()
			return err
		}
	}
	if _, err := stmt.Step(); err != nil {
		stmt.Finalize()
		return errors.Wrapf(err, "cannot exec %s", query)
	}
	return stmt.Finalize()
}

func bindValue(stmt *sqlite.Stmt, param int, value interface{}) error {
	switch v := value.(type) {
	case nil:
		stmt.BindNull(param)
	case string:
		stmt.BindText(param, v)
	case []byte:
		stmt.BindBytes(param, v)
	case int:
		stmt.BindInt64(param, int64(v))
	case int64:
		stmt.BindInt64(param, v)
	case bool:
		if v {
			stmt.BindInt64(param, 1)
		} else {
			stmt.BindInt64(param, 0)
		}
	case float64:
		stmt.BindFloat(param, v)
	default:
		rv := reflect.ValueOf(value)
		switch rv.Kind() {
		case reflect.String:
			stmt.BindText(param, rv.String())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			stmt.BindInt64(param, rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			stmt.BindInt64(param, int64(rv.Uint()))
		case reflect.Bool:
			if rv.Bool() {
				stmt.BindInt64(param, 1)
			} else {
				stmt.BindInt64(param, 0)
			}
		default:
			return fmt.Errorf("cannot bind %T", value)
		}
	}
	return nil
}

// fieldMap converts a struct to a column map, snake-casing field names and
// hoisting embedded structs to the top level.
func fieldMap(element interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for _, f := range structs.Fields(element) {
		if f.IsEmbedded() {
			for _, sub := range f.Fields() {
				out[columnName(sub)] = sub.Value()
			}
			continue
		}
		out[columnName(f)] = f.Value()
	}
	return out
}

// columnName maps a struct field to its column: an explicit structs tag
// wins, otherwise the snake-cased field name.
func columnName(f *structs.Field) string {
	if tag := f.Tag(structs.DefaultTagName); tag != "" {
		return tag
	}
	return strcase.SnakeCase(f.Name())
}

// insertStruct inserts one struct into table, mapping fields to columns by
// snake case. Callers hold the store mutex.
func (s *Store) insertStruct(table string, element interface{}) error {
	m := fieldMap(element)
	columns := make([]string, 0, len(m))
	for column := range m {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, column := range columns {
		quoted[i] = `"` + column + `"`
		placeholders[i] = "?"
		args[i] = m[column]
	}
	query := fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`, // #nosec
		table, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	return s.exec(query, args...)
}

// Count returns the number of rows of a table, optionally filtered by
// evidence.
func (s *Store) Count(table, evidenceID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := fmt.Sprintf(`SELECT count(*) AS n FROM "%s"`, table) // #nosec
	if evidenceID != "" {
		query += ` WHERE "evidence_id" = ?`
	}
	stmt, err := s.conn.Prepare(query)
	if err != nil {
		return 0, err
	}
	if evidenceID != "" {
		stmt.BindText(1, evidenceID)
	}
	if _, err := stmt.Step(); err != nil {
		stmt.Finalize()
		return 0, err
	}
	n := stmt.GetInt64("n")
	return n, stmt.Finalize()
}

// Tables lists the artifact tables of the store in sorted order.
func (s *Store) Tables() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmt, err := s.conn.Prepare(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, err
	}
	var tables []string
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			stmt.Finalize()
			return nil, err
		}
		if !hasRow {
			break
		}
		tables = append(tables, stmt.GetText("name"))
	}
	if err := stmt.Finalize(); err != nil {
		return nil, err
	}
	sort.Strings(tables)
	return tables, nil
}
