package service

import (
	"errors"

	apperrors "go-material-store/pkg/errors"

	"gorm.io/gorm"
)

var (
	ErrEmptyCart      = apperrors.New(apperrors.CodeValidation, "no cart items selected for checkout")
	ErrInvalidAddress = apperrors.New(apperrors.CodeValidation, "address not found")
)

// notFound turns a missing row into NOT_FOUND and anything else into INTERNAL_ERROR.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.New(apperrors.CodeNotFound, what+" not found")
	}
	return internal(err, "load "+what)
}

// internal wraps infrastructure failures unless they already carry a code.
func internal(err error, msg string) error {
	if err == nil {
		return nil
	}
	if apperrors.As(err) != nil {
		return err
	}
	return apperrors.Wrap(apperrors.CodeInternal, err, msg)
}
