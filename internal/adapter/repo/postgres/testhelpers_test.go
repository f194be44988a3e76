package postgres

import (
	"context"
	"errors"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// assignRow copies fixture values into scan destinations, leaving nil
// fixture entries as zero values.
func assignRow(values []any, dest []any) error {
	if len(values) != len(dest) {
		return errors.New("column count mismatch")
	}
	for i, v := range values {
		if v == nil {
			continue
		}
		dv := reflect.ValueOf(dest[i]).Elem()
		sv := reflect.ValueOf(v)
		if !sv.Type().AssignableTo(dv.Type()) {
			if sv.Type().ConvertibleTo(dv.Type()) {
				sv = sv.Convert(dv.Type())
			} else {
				return errors.New("cannot assign fixture value")
			}
		}
		dv.Set(sv)
	}
	return nil
}

// rowStub implements pgx.Row.
type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

func fixtureRow(values ...any) rowStub {
	return rowStub{scan: func(dest ...any) error { return assignRow(values, dest) }}
}

// rowsStub implements pgx.Rows over fixed fixture rows.
type rowsStub struct {
	rows [][]any
	idx  int
	err  error
}

func (r *rowsStub) Close()                                       {}
func (r *rowsStub) Err() error                                   { return r.err }
func (r *rowsStub) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *rowsStub) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *rowsStub) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}
func (r *rowsStub) Scan(dest ...any) error { return assignRow(r.rows[r.idx-1], dest) }
func (r *rowsStub) Values() ([]any, error) { return nil, errors.New("not implemented") }
func (r *rowsStub) RawValues() [][]byte    { return nil }
func (r *rowsStub) Conn() *pgx.Conn        { return nil }

// execCall records one statement executed through a stub.
type execCall struct {
	sql  string
	args []any
}

// txStub implements pgx.Tx recording statements.
type txStub struct {
	execs      []execCall
	execErr    error
	queryRow   func(sql string, args ...any) pgx.Row
	committed  bool
	rolledBack bool
}

func (t *txStub) Begin(_ context.Context) (pgx.Tx, error) { return t, nil }
func (t *txStub) Commit(_ context.Context) error {
	t.committed = true
	return nil
}
func (t *txStub) Rollback(_ context.Context) error {
	t.rolledBack = true
	return nil
}
func (t *txStub) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}
func (t *txStub) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }
func (t *txStub) LargeObjects() pgx.LargeObjects                             { return pgx.LargeObjects{} }
func (t *txStub) Prepare(_ context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not implemented")
}
func (t *txStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("UPDATE 1"), t.execErr
}
func (t *txStub) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}
func (t *txStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if t.queryRow == nil {
		return rowStub{scan: func(_ ...any) error { return errors.New("no row configured") }}
	}
	return t.queryRow(sql, args...)
}
func (t *txStub) Conn() *pgx.Conn { return nil }

// poolStub implements PgxPool for tests.
type poolStub struct {
	execs    []execCall
	execTag  pgconn.CommandTag
	execErr  error
	row      pgx.Row
	rowFn    func(sql string, args ...any) pgx.Row
	rows     pgx.Rows
	queryErr error
	lastSQL  string
	lastArgs []any
	tx       *txStub
}

func (p *poolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execs = append(p.execs, execCall{sql: sql, args: args})
	p.lastSQL, p.lastArgs = sql, args
	return p.execTag, p.execErr
}

func (p *poolStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	p.lastSQL, p.lastArgs = sql, args
	if p.rowFn != nil {
		return p.rowFn(sql, args...)
	}
	if p.row == nil {
		return rowStub{scan: func(_ ...any) error { return errors.New("no row configured") }}
	}
	return p.row
}

func (p *poolStub) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	p.lastSQL, p.lastArgs = sql, args
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	if p.rows == nil {
		return &rowsStub{}, nil
	}
	return p.rows, nil
}

func (p *poolStub) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	if p.tx == nil {
		p.tx = &txStub{}
	}
	return p.tx, nil
}
