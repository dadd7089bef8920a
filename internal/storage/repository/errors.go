package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/magabrotheeeer/filesfy/internal/lib/apperr"
)

// classify приводит ошибку драйвера к категории из apperr,
// сохраняя исходную ошибку в цепочке. Любая ошибка подключения, в том числе
// отказ сервера при старте сессии (неверный пароль, нет базы), считается
// недоступностью хранилища.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", apperr.ErrNotFound, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %w", apperr.ErrStoreUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %w", apperr.ErrConflict, err)
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgerrcode.IsOperatorIntervention(pgErr.Code),
			pgerrcode.IsInsufficientResources(pgErr.Code),
			pgerrcode.IsInvalidAuthorizationSpecification(pgErr.Code),
			pgErr.Code == pgerrcode.InvalidCatalogName:
			return fmt.Errorf("%w: %w", apperr.ErrStoreUnavailable, err)
		}
		return err
	}

	if isUnavailable(err) {
		return fmt.Errorf("%w: %w", apperr.ErrStoreUnavailable, err)
	}
	return err
}

func isUnavailable(err error) bool {
	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		pgconn.Timeout(err),
		errors.As(err, &netErr):
		return true
	}
	return false
}
