package support

import (
	"errors"

	"rentcar/internal/app/apperrors"
	"rentcar/internal/app/uow"
	domainbooking "rentcar/internal/domain/booking"
	domaincars "rentcar/internal/domain/cars"
)

// StoreError classifies a repository failure. Lost version races pass through
// untouched so the retry middleware can recognise them.
func StoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, uow.ErrConcurrentUpdate) {
		return err
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Persistence(err)
}

// LookupError maps a by-id read failure to NotFound when the record is missing.
func LookupError(err error, resource, id string) error {
	if errors.Is(err, domaincars.ErrCarNotFound) || errors.Is(err, domainbooking.ErrBookingNotFound) {
		return apperrors.NotFound(resource, id)
	}
	return StoreError(err)
}
