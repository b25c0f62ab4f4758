package dbutil

import (
	"gorm.io/gorm"

	"github.com/Aidin1998/pincex_points/common/errors"
)

// FindOne loads the first row matched by db. A miss is reported as a
// NotFound error.
func FindOne[T any](db *gorm.DB) (*T, error) {
	var item T
	result := db.Limit(1).Find(&item)
	if result.Error != nil {
		return nil, WrapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, errors.NewWithKind(errors.KindNotFound)
	}
	return &item, nil
}

// IsNotFound reports whether err is a NotFound error from this package.
func IsNotFound(err error) bool {
	return errors.KindOf(err) == errors.KindNotFound
}
