// Package sqltrace traces database/sql statements as linkz database requests.
package sqltrace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zoobzio/linkz"
)

// ErrNoDatabaseInfo is returned when the SDK refuses to describe the database,
// for example because the agent is not initialized.
var ErrNoDatabaseInfo = errors.New("database info could not be created")

// DB traces statements run against one database. Each method traces on the
// calling goroutine, so a DB may be shared like *sql.DB.
type DB struct {
	db   *sql.DB
	sdk  *linkz.SDK
	info linkz.DatabaseInfoHandle
}

// Open opens a database with database/sql and describes it to sdk.
func Open(sdk *linkz.SDK, driverName, dataSourceName, name, vendor string, channel linkz.Channel) (*DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driverName, err)
	}
	d, err := Wrap(sdk, db, name, vendor, channel)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// Wrap traces statements on an existing handle. Closing the returned DB
// closes db.
func Wrap(sdk *linkz.SDK, db *sql.DB, name, vendor string, channel linkz.Channel) (*DB, error) {
	info := sdk.CreateDatabaseInfo(name, vendor, channel)
	if info == linkz.DatabaseInfoHandle(linkz.InvalidHandle) {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNoDatabaseInfo, name, vendor)
	}
	return &DB{db: db, sdk: sdk, info: info}, nil
}

// DB returns the underlying handle for untraced use.
func (d *DB) DB() *sql.DB {
	return d.db
}

// ExecContext runs a statement that returns no rows.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	h := d.start(query)
	defer d.sdk.End(h)

	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		d.fail(h, err)
		return nil, err
	}
	d.sdk.SetRoundTripCount(h, 1)
	return res, nil
}

// QueryContext runs a query and calls scan once per returned row. The
// returned row count is recorded once all rows are read.
func (d *DB) QueryContext(ctx context.Context, query string, scan func(*sql.Rows) error, args ...any) error {
	h := d.start(query)
	defer d.sdk.End(h)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		d.fail(h, err)
		return err
	}
	defer rows.Close()

	var n int32
	for rows.Next() {
		if err := scan(rows); err != nil {
			d.fail(h, err)
			return err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		d.fail(h, err)
		return err
	}

	d.sdk.SetReturnedRowCount(h, n)
	d.sdk.SetRoundTripCount(h, 1)
	return nil
}

// Close releases the database description and closes the underlying handle.
// Statements still being traced keep the description until they end.
func (d *DB) Close() error {
	d.sdk.DeleteDatabaseInfo(d.info)
	return d.db.Close()
}

func (d *DB) start(query string) linkz.TracerHandle {
	h := d.sdk.CreateSQLDatabaseRequestTracer(d.info, query)
	d.sdk.Start(h)
	return h
}

func (d *DB) fail(h linkz.TracerHandle, err error) {
	d.sdk.Error(h, fmt.Sprintf("%T", err), err.Error())
}
