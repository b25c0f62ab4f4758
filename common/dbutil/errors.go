package dbutil

import (
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/Aidin1998/pincex_points/common/errors"
)

const (
	DuplicateKeyErrorCode    = "23505"
	SerializationFailureCode = "40001"
	QueryCanceledErrorCode   = "57014"
)

// WrapError wraps a gorm error.
func WrapError(err error) error {
	var pgErr *pgconn.PgError

	if err == nil {
		return nil
	} else if _, ok := err.(*errors.Error); ok {
		return err
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NewWithKind(errors.KindNotFound).Wrap(err)
	} else if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case DuplicateKeyErrorCode:
			return errors.ErrStore.
				Explain("duplication of key").
				Wrap(err)
		case SerializationFailureCode:
			return errors.ErrStore.
				Explain("serialization failure").
				Wrap(err)
		case QueryCanceledErrorCode:
			return errors.ErrStore.
				Explain("query canceled").
				Wrap(err)
		}
		return errors.ErrStore.Explain("postgres error %s", pgErr.Code).Wrap(err)
	}

	return errors.ErrStore.Wrap(err)
}
