package dbutil

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/Aidin1998/pincex_points/common/errors"
)

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil))

	own := errors.ErrValidation.Explain("bad")
	assert.Same(t, own, WrapError(own))

	notFound := WrapError(gorm.ErrRecordNotFound)
	assert.True(t, IsNotFound(notFound))
	assert.True(t, errors.Is(notFound, gorm.ErrRecordNotFound))

	dup := WrapError(&pgconn.PgError{Code: DuplicateKeyErrorCode})
	assert.True(t, errors.Is(dup, errors.ErrStore))
	assert.Contains(t, dup.Error(), "duplication of key")

	other := WrapError(&pgconn.PgError{Code: "08006"})
	assert.True(t, errors.Is(other, errors.ErrStore))
	assert.Contains(t, other.Error(), "08006")

	plain := WrapError(fmt.Errorf("disk full"))
	assert.Equal(t, errors.KindStore, errors.KindOf(plain))
	assert.False(t, IsNotFound(plain))
}
