package mongo

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"

	domainbooking "rentcar/internal/domain/booking"
	"rentcar/internal/domain/shared/daterange"
	"rentcar/internal/domain/shared/money"
)

func TestIsWriteConflict(t *testing.T) {
	assert.True(t, isWriteConflict(mongo.CommandError{Code: 112, Name: "WriteConflict"}))
	assert.True(t, isWriteConflict(fmt.Errorf("commit: %w", mongo.CommandError{Labels: []string{"TransientTransactionError"}})))
	assert.True(t, isWriteConflict(mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 112}}}))
	assert.False(t, isWriteConflict(mongo.CommandError{Code: 11000}))
	assert.False(t, isWriteConflict(errors.New("network")))
}

func TestBookingDocumentKeepsLedgerFields(t *testing.T) {
	created := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	b := &domainbooking.Booking{
		ID:         "0190a3",
		CarID:      "car-1",
		Range:      daterange.DateRange{Start: "2025-07-23", End: "2025-07-25"},
		Renter:     domainbooking.Renter{Name: "Asha", ContactNumber: "9876543210"},
		Collateral: domainbooking.Collateral{Kind: domainbooking.CollateralVehicles, Vehicles: "Activa"},
		Total:      money.Must(5000, "INR"),
		CreatedAt:  created,
	}
	doc := newBookingDocument(b)
	assert.Equal(t, "2025-07-23", doc.StartDate)
	assert.Equal(t, "vehicles", doc.Collateral.Kind)
	assert.Equal(t, b, doc.toBooking())
}
