package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// scanRow is a Row backed by a function.
type scanRow func(dest ...any) error

func (f scanRow) Scan(dest ...any) error {
	return f(dest...)
}

func valuesRow(values ...any) Row {
	return scanRow(func(dest ...any) error {
		return scanValues(dest, values)
	})
}

func errRow(err error) Row {
	return scanRow(func(dest ...any) error { return err })
}

// fakeRows iterates over fixed value tuples.
type fakeRows struct {
	rows   [][]any
	pos    int
	err    error
	closed bool
}

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.rows) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	if f.pos == 0 {
		return errors.New("Scan before Next")
	}
	return scanValues(dest, f.rows[f.pos-1])
}

func (f *fakeRows) Err() error { return f.err }
func (f *fakeRows) Close()     { f.closed = true }

type fakeDB struct {
	QueryFunc    func(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) Row
	BeginFunc    func(ctx context.Context) (Tx, error)
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if f.QueryFunc == nil {
		return &fakeRows{}, nil
	}
	return f.QueryFunc(ctx, sql, args...)
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) Row {
	if f.QueryRowFunc == nil {
		return errRow(fmt.Errorf("no QueryRow stub for %q", sql))
	}
	return f.QueryRowFunc(ctx, sql, args...)
}

func (f *fakeDB) Begin(ctx context.Context) (Tx, error) {
	if f.BeginFunc == nil {
		return nil, errors.New("no Begin stub")
	}
	return f.BeginFunc(ctx)
}

// fakeTx shares fakeDB's query stubs and records how it ended.
type fakeTx struct {
	QueryFunc    func(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) Row
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (f *fakeTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return (&fakeDB{QueryFunc: f.QueryFunc}).Query(ctx, sql, args...)
}

func (f *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return (&fakeDB{QueryRowFunc: f.QueryRowFunc}).QueryRow(ctx, sql, args...)
}

func (f *fakeTx) Commit(ctx context.Context) error {
	if f.CommitFunc == nil {
		return nil
	}
	return f.CommitFunc(ctx)
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	if f.RollbackFunc == nil {
		return nil
	}
	return f.RollbackFunc(ctx)
}

// scanValues copies values into scan destinations, converting between
// compatible types (e.g. string into FriendRequestStatus) the way pgx does.
func scanValues(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, value := range values {
		target := reflect.ValueOf(dest[i])
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("scan: destination %d is not a pointer", i)
		}
		elem := target.Elem()
		if value == nil {
			elem.SetZero()
			continue
		}
		v := reflect.ValueOf(value)
		switch {
		case v.Type().AssignableTo(elem.Type()):
			elem.Set(v)
		case v.Type().ConvertibleTo(elem.Type()):
			elem.Set(v.Convert(elem.Type()))
		default:
			return fmt.Errorf("scan: cannot store %T in %s", value, elem.Type())
		}
	}
	return nil
}
