package service

import (
	"errors"
	"fmt"

	"permit-service/internal/repository"
)

var (
	ErrInvalidPlate             = errors.New("invalid plate")
	ErrInvalidDuration          = errors.New("invalid duration")
	ErrInvalidPrices            = errors.New("invalid prices")
	ErrOverlappingPeriod        = errors.New("overlapping price period")
	ErrCannotDeleteCurrent      = errors.New("cannot delete the currently effective price config")
	ErrNoPriceConfig            = errors.New("no price config in effect")
	ErrNotFound                 = errors.New("not found")
	ErrInvalidStatusTransition  = errors.New("invalid status transition")
	ErrTransactionCodeExhausted = errors.New("transaction code generation exhausted")
	ErrConsistencyFault         = errors.New("consistency fault")
	ErrPermissionDenied         = errors.New("permission denied")
	ErrInvalidInput             = errors.New("invalid input")
	ErrZoneInactive             = errors.New("zone is inactive")
	ErrPriceConfigInUse         = errors.New("price config is referenced by permits")
)

// notFound maps a repository miss to ErrNotFound and passes anything else
// through untouched.
func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}
