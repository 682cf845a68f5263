package sqlstore

import "time"

type carRow struct {
	ID              string `gorm:"primaryKey;size:64"`
	Name            string
	Type            string
	Location        string
	FuelType        string
	Transmission    string
	SeatingCapacity int
	Mileage         float64
	Rating          float64
	Image           string
	DailyRate       int64
	Currency        string `gorm:"size:8"`
	Version         int64  `gorm:"not null;default:0"`
}

func (carRow) TableName() string { return "cars" }

// bookedDayRow is one consumed night. The composite key is the storage-level
// guard against two bookings claiming the same night.
type bookedDayRow struct {
	CarID string `gorm:"primaryKey;size:64"`
	Day   string `gorm:"primaryKey;size:10"`
}

func (bookedDayRow) TableName() string { return "car_booked_days" }

type bookingRow struct {
	ID                 string `gorm:"primaryKey;size:64"`
	CarID              string `gorm:"index:idx_bookings_car_created,priority:1;size:64;not null"`
	RequesterID        string
	StartDate          string `gorm:"size:10"`
	EndDate            string `gorm:"size:10"`
	RenterName         string
	ContactNumber      string
	Note               string
	LicenseReference   string
	CollateralType     string
	CollateralAmount   int64
	CollateralGadgets  string
	CollateralVehicles string
	TotalAmount        int64
	Currency           string    `gorm:"size:8"`
	CreatedAt          time.Time `gorm:"index:idx_bookings_car_created,priority:2"`
}

func (bookingRow) TableName() string { return "bookings" }

type outboxRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	Name        string
	Payload     []byte
	OccurredAt  time.Time
	Aggregate   string
	Headers     string
	State       string    `gorm:"index:idx_outbox_ready,priority:1;size:16"`
	NextAttempt time.Time `gorm:"column:next_attempt_at;index:idx_outbox_ready,priority:2"`
	Attempts    int
	ClaimedBy   string
	ClaimedAt   time.Time
	SentAt      time.Time
	LastError   string
	CreatedAt   time.Time
}

func (outboxRow) TableName() string { return "outbox_events" }

type idempotencyRow struct {
	Key        string `gorm:"column:idem_key;primaryKey;size:255"`
	Payload    []byte
	ErrorKind  string
	Error      string
	Details    []byte
	OccurredAt time.Time `gorm:"index"`
}

func (idempotencyRow) TableName() string { return "idempotency_records" }
