package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/csgen/Airi/internal/domain"
)

const uniqueViolation = "23505"

// classify maps driver errors onto the store's error contract.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == uniqueViolation:
			return fmt.Errorf("%w: %w", domain.ErrDuplicate, err)
		case transientCode(pgErr.Code):
			return domain.Transient(err)
		}
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connectErr),
		errors.As(err, &netErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		pgconn.SafeToRetry(err):
		return domain.Transient(err)
	}
	return err
}

// transientCode reports SQLSTATE codes worth retrying: connection
// exceptions, insufficient resources, operator shutdowns and serialization
// conflicts.
func transientCode(code string) bool {
	switch {
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "53"):
		return true
	case code == "57P01", code == "57P02", code == "57P03":
		return true
	case code == "40001", code == "40P01":
		return true
	}
	return false
}
