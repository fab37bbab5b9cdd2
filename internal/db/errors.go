package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// ErrKind categorises a catalog failure without exposing driver-specific codes
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindConnectionFailed         // cannot reach or authenticate to the database
	ErrKindTimeout                  // context deadline or cancellation
	ErrKindQueryFailed              // SQL execution or row decoding error
	ErrKindInconsistent             // strict assembly rejected the catalog rows
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInconsistent:
		return "inconsistent"
	default:
		return "unknown"
	}
}

// CatalogError reports which stage of a reflection run failed, and for
// which table when the stage is table scoped.
type CatalogError struct {
	Stage Stage
	Table string
	Kind  ErrKind
	Err   error
}

func (e *CatalogError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s [%s]: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("reflect table %q: %s [%s]: %v", e.Table, e.Stage, e.Kind, e.Err)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// wrapStage attaches stage and table to err. An error that already carries
// a stage is returned unchanged.
func wrapStage(stage Stage, table string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CatalogError
	if errors.As(err, &ce) {
		return err
	}
	return &CatalogError{Stage: stage, Table: table, Kind: classify(err), Err: err}
}

// classify maps native driver errors to an ErrKind
func classify(err error) ErrKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrKindTimeout
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" {
			return ErrKindConnectionFailed
		}
		return ErrKindQueryFailed
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1044, 1045: // access denied
			return ErrKindConnectionFailed
		}
		return ErrKindQueryFailed
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code == sqlite3.ErrCantOpen || liteErr.Code == sqlite3.ErrNotADB {
			return ErrKindConnectionFailed
		}
		return ErrKindQueryFailed
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, mysql.ErrInvalidConn) {
		return ErrKindConnectionFailed
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return ErrKindConnectionFailed
	}
	return ErrKindUnknown
}

// IsConnectionFailed reports whether err is a connectivity or auth failure
func IsConnectionFailed(err error) bool {
	return kindOf(err) == ErrKindConnectionFailed
}

// IsTimeout reports whether err was caused by a deadline or cancellation
func IsTimeout(err error) bool {
	return kindOf(err) == ErrKindTimeout
}

// IsQueryFailed reports whether err is a SQL execution or decoding failure
func IsQueryFailed(err error) bool {
	return kindOf(err) == ErrKindQueryFailed
}

func kindOf(err error) ErrKind {
	var ce *CatalogError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrKindUnknown
}
