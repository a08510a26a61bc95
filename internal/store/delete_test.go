package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"

	"github.com/KeiJoi/ffxivbingo4all/internal/bingo"
)

var errNoRowCount = errors.New("row count unavailable")

// noCountConnector yields connections whose Exec results cannot report
// affected rows.
type noCountConnector struct{}

func (noCountConnector) Connect(context.Context) (driver.Conn, error) { return noCountConn{}, nil }
func (noCountConnector) Driver() driver.Driver                        { return nil }

type noCountConn struct{}

func (noCountConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (noCountConn) Close() error                        { return nil }
func (noCountConn) Begin() (driver.Tx, error)           { return nil, errors.New("not supported") }

func (noCountConn) ExecContext(context.Context, string, []driver.NamedValue) (driver.Result, error) {
	return noCountResult{}, nil
}

type noCountResult struct{}

func (noCountResult) LastInsertId() (int64, error) { return 0, nil }
func (noCountResult) RowsAffected() (int64, error) { return 0, errNoRowCount }

func TestDeleteRoomRowCountFailure(t *testing.T) {
	db := sql.OpenDB(noCountConnector{})
	t.Cleanup(func() { db.Close() })
	s := New(db, discardLogger(), Options{Timeout: time.Second, Clock: quartz.NewMock(t)})

	err := s.DeleteRoom(context.Background(), "ROOM1")
	assert.ErrorIs(t, err, bingo.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, bingo.ErrNotFound)
	assert.ErrorContains(t, err, errNoRowCount.Error())
}
