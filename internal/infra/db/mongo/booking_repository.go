package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "rentcar/internal/domain/booking"
	domaincars "rentcar/internal/domain/cars"
	"rentcar/internal/domain/shared/daterange"
	"rentcar/internal/domain/shared/money"
)

var ErrDuplicateBooking = errors.New("mongo: booking id already exists")

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	col := db.Collection("bookings")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys: bson.D{{Key: "car_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
	})
	return &BookingRepository{col: col}
}

func (r *BookingRepository) Append(ctx context.Context, b *domainbooking.Booking) error {
	_, err := r.col.InsertOne(ctx, newBookingDocument(b))
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateBooking
	}
	return err
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toBooking(), nil
}

// ListByCar sorts by created_at; ids are time-ordered so _id breaks ties in
// insertion order.
func (r *BookingRepository) ListByCar(ctx context.Context, carID domaincars.CarID) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"car_id": string(carID)}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*domainbooking.Booking
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toBooking())
	}
	return out, cur.Err()
}

type collateralDocument struct {
	Kind     string `bson:"type"`
	Amount   int64  `bson:"amount,omitempty"`
	Gadgets  string `bson:"gadgets,omitempty"`
	Vehicles string `bson:"vehicles,omitempty"`
}

type bookingDocument struct {
	ID               string             `bson:"_id"`
	CarID            string             `bson:"car_id"`
	RequesterID      string             `bson:"requester_id,omitempty"`
	StartDate        string             `bson:"start_date"`
	EndDate          string             `bson:"end_date"`
	RenterName       string             `bson:"renter_name"`
	ContactNumber    string             `bson:"contact_number"`
	Note             string             `bson:"note,omitempty"`
	LicenseReference string             `bson:"license_reference,omitempty"`
	Collateral       collateralDocument `bson:"collateral"`
	TotalAmount      int64              `bson:"total_amount"`
	Currency         string             `bson:"currency"`
	CreatedAt        time.Time          `bson:"created_at"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:               string(b.ID),
		CarID:            string(b.CarID),
		RequesterID:      b.RequesterID,
		StartDate:        string(b.Range.Start),
		EndDate:          string(b.Range.End),
		RenterName:       b.Renter.Name,
		ContactNumber:    b.Renter.ContactNumber,
		Note:             b.Note,
		LicenseReference: b.LicenseReference,
		Collateral: collateralDocument{
			Kind:     string(b.Collateral.Kind),
			Amount:   b.Collateral.Amount,
			Gadgets:  b.Collateral.Gadgets,
			Vehicles: b.Collateral.Vehicles,
		},
		TotalAmount: b.Total.Amount,
		Currency:    b.Total.Currency,
		CreatedAt:   b.CreatedAt.UTC(),
	}
}

func (d bookingDocument) toBooking() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:               domainbooking.BookingID(d.ID),
		CarID:            domaincars.CarID(d.CarID),
		RequesterID:      d.RequesterID,
		Range:            daterange.DateRange{Start: daterange.DayKey(d.StartDate), End: daterange.DayKey(d.EndDate)},
		Renter:           domainbooking.Renter{Name: d.RenterName, ContactNumber: d.ContactNumber},
		Note:             d.Note,
		LicenseReference: d.LicenseReference,
		Collateral: domainbooking.Collateral{
			Kind:     domainbooking.CollateralKind(d.Collateral.Kind),
			Amount:   d.Collateral.Amount,
			Gadgets:  d.Collateral.Gadgets,
			Vehicles: d.Collateral.Vehicles,
		},
		Total:     money.Money{Amount: d.TotalAmount, Currency: d.Currency},
		CreatedAt: d.CreatedAt.UTC(),
	}
}

var _ domainbooking.Ledger = (*BookingRepository)(nil)
