package point

import (
	"math"

	"github.com/Aidin1998/pincex_points/common/errors"
	"github.com/Aidin1998/pincex_points/pkg/models"
)

// mutation is the part of the charge/use protocol that differs between the
// two operations: the history kind and how the new balance is derived.
type mutation struct {
	kind models.TransactionType
	// precheck rejects obviously failing requests before the lock is taken.
	// Nil means no pre-check applies.
	precheck func(current, amount int64) error
	// apply computes the balance after the mutation. It is the authoritative
	// check and runs under the user's lock.
	apply func(current, amount int64) (int64, error)
}

var chargeMutation = mutation{
	kind: models.TransactionCharge,
	apply: func(current, amount int64) (int64, error) {
		if current > math.MaxInt64-amount {
			return 0, errors.ErrValidation.Explain("charge of %d would overflow balance %d", amount, current)
		}
		return current + amount, nil
	},
}

var useMutation = mutation{
	kind:     models.TransactionUse,
	precheck: checkSufficient,
	apply: func(current, amount int64) (int64, error) {
		if err := checkSufficient(current, amount); err != nil {
			return 0, err
		}
		return current - amount, nil
	},
}

func checkSufficient(current, amount int64) error {
	if current < amount {
		return errors.ErrInsufficientBalance.Explain("balance %d is less than requested %d", current, amount)
	}
	return nil
}
