package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/amirasaad/crossledger/pkg/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// MapGormErrorToDomain converts GORM and driver errors to domain errors.
// This keeps infrastructure concerns (database errors) within the infrastructure layer.
// The original error stays in the message; callers match with errors.Is.
func MapGormErrorToDomain(err error) error {
	if err == nil {
		return nil
	}
	if mapped := classify(err); mapped != nil {
		if errors.Is(err, mapped) {
			return err
		}
		return fmt.Errorf("%w: %v", mapped, err)
	}
	return err
}

func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrStorageUnavailable),
		errors.Is(err, domain.ErrConcurrentModification),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrHasOpenReferences):
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrAlreadyExists
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return domain.ErrHasOpenReferences
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return domain.ErrAlreadyExists
		case pgErr.Code == "23503":
			return domain.ErrHasOpenReferences
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "55P03":
			return domain.ErrConcurrentModification
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == "53300",
			pgErr.Code == "57P01",
			pgErr.Code == "57P02",
			pgErr.Code == "57P03":
			return domain.ErrStorageUnavailable
		}
		return nil
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return domain.ErrStorageUnavailable
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrStorageUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.ErrStorageUnavailable
	}
	return nil
}

// WrapError wraps a GORM operation and automatically maps errors.
//
// Usage:
//
//	err := WrapError(func() error {
//	    return r.db.WithContext(ctx).Create(&m).Error
//	})
func WrapError(op func() error) error {
	return MapGormErrorToDomain(op())
}
