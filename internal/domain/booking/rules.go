package booking

import (
	"errors"
	"fmt"
	"strings"

	"rentcar/internal/domain/shared/daterange"
)

var (
	ErrZeroNights               = errors.New("booking: end date must be after start date")
	ErrStartInPast              = errors.New("booking: start date is in the past")
	ErrTooManyNights            = errors.New("booking: stay exceeds the maximum number of nights")
	ErrRenterNameRequired       = errors.New("booking: renter name required")
	ErrContactRequired          = errors.New("booking: contact number required")
	ErrInvalidContact           = errors.New("booking: malformed contact number")
	ErrUnknownCollateral        = errors.New("booking: unknown collateral type")
	ErrCollateralBelowMinimum   = errors.New("booking: collateral amount below minimum")
	ErrCollateralDetailRequired = errors.New("booking: collateral description required")
)

const (
	DefaultMinCollateral = 1000
	DefaultContactDigits = 10
	DefaultMaxNights     = 365
)

type Renter struct {
	Name          string `json:"name"`
	ContactNumber string `json:"contact_number"`
}

func (r Renter) Normalized() Renter {
	return Renter{Name: strings.TrimSpace(r.Name), ContactNumber: strings.TrimSpace(r.ContactNumber)}
}

type CollateralKind string

const (
	CollateralAmount   CollateralKind = "amount"
	CollateralGadgets  CollateralKind = "gadgets"
	CollateralVehicles CollateralKind = "vehicles"
)

// Collateral holds exactly one of Amount, Gadgets or Vehicles as selected by Kind.
type Collateral struct {
	Kind     CollateralKind `json:"type"`
	Amount   int64          `json:"amount,omitempty"`
	Gadgets  string         `json:"gadgets,omitempty"`
	Vehicles string         `json:"vehicles,omitempty"`
}

// Normalized drops the fields the selected kind does not use.
func (c Collateral) Normalized() Collateral {
	switch c.Kind {
	case CollateralAmount:
		return Collateral{Kind: c.Kind, Amount: c.Amount}
	case CollateralGadgets:
		return Collateral{Kind: c.Kind, Gadgets: strings.TrimSpace(c.Gadgets)}
	case CollateralVehicles:
		return Collateral{Kind: c.Kind, Vehicles: strings.TrimSpace(c.Vehicles)}
	}
	return c
}

// Rules holds the request-level checks run before any shared state is read.
type Rules struct {
	MinCollateral int64
	ContactDigits int
	MaxNights     int
}

func DefaultRules() Rules {
	return Rules{MinCollateral: DefaultMinCollateral, ContactDigits: DefaultContactDigits, MaxNights: DefaultMaxNights}
}

func (r Rules) withDefaults() Rules {
	if r.MinCollateral <= 0 {
		r.MinCollateral = DefaultMinCollateral
	}
	if r.ContactDigits <= 0 {
		r.ContactDigits = DefaultContactDigits
	}
	if r.MaxNights <= 0 {
		r.MaxNights = DefaultMaxNights
	}
	return r
}

// ValidateSpan requires between one and MaxNights consumed nights.
func (r Rules) ValidateSpan(dr daterange.DateRange) error {
	rules := r.withDefaults()
	if err := dr.Validate(); err != nil {
		return err
	}
	nights := dr.NightCount()
	if nights < 1 {
		return ErrZeroNights
	}
	if nights > rules.MaxNights {
		return fmt.Errorf("%w: %d requested, maximum is %d", ErrTooManyNights, nights, rules.MaxNights)
	}
	return nil
}

// ValidateRange is ValidateSpan plus a start no earlier than today.
func (r Rules) ValidateRange(dr daterange.DateRange, today daterange.DayKey) error {
	if err := r.ValidateSpan(dr); err != nil {
		return err
	}
	if dr.Start.Before(today) {
		return ErrStartInPast
	}
	return nil
}

func (r Rules) ValidateRenter(renter Renter) error {
	rules := r.withDefaults()
	renter = renter.Normalized()
	if renter.Name == "" {
		return ErrRenterNameRequired
	}
	if renter.ContactNumber == "" {
		return ErrContactRequired
	}
	if len(renter.ContactNumber) != rules.ContactDigits {
		return fmt.Errorf("%w: expected %d digits", ErrInvalidContact, rules.ContactDigits)
	}
	for _, ch := range renter.ContactNumber {
		if ch < '0' || ch > '9' {
			return fmt.Errorf("%w: expected %d digits", ErrInvalidContact, rules.ContactDigits)
		}
	}
	return nil
}

func (r Rules) ValidateCollateral(c Collateral) error {
	rules := r.withDefaults()
	switch c.Kind {
	case CollateralAmount:
		if c.Amount < rules.MinCollateral {
			return fmt.Errorf("%w: minimum is %d", ErrCollateralBelowMinimum, rules.MinCollateral)
		}
	case CollateralGadgets:
		if strings.TrimSpace(c.Gadgets) == "" {
			return ErrCollateralDetailRequired
		}
	case CollateralVehicles:
		if strings.TrimSpace(c.Vehicles) == "" {
			return ErrCollateralDetailRequired
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCollateral, c.Kind)
	}
	return nil
}

// IsValidationError reports whether err came from one of the Rules checks.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrZeroNights, ErrStartInPast, ErrTooManyNights, ErrRenterNameRequired, ErrContactRequired,
		ErrInvalidContact, ErrUnknownCollateral, ErrCollateralBelowMinimum,
		ErrCollateralDetailRequired, daterange.ErrInvalidDay, daterange.ErrInvalidRange,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
