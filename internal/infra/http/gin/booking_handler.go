package ginserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"rentcar/internal/app/commands"
	"rentcar/internal/app/dto"
	bookingapp "rentcar/internal/app/handlers/booking"
	"rentcar/internal/app/queries"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	RequesterHeader   = "X-Requester-ID"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

// amount accepts a JSON number or a numeric string; web forms post the latter.
type amount int64

func (a *amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*a = 0
			return nil
		}
		data = []byte(s)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("collateral amount must be a whole number: %w", err)
	}
	*a = amount(n)
	return nil
}

type collateralRequest struct {
	Amount   amount `json:"amount"`
	Gadgets  string `json:"gadgets"`
	Vehicles string `json:"vehicles"`
}

type createBookingRequest struct {
	CarID            string            `json:"carId"`
	StartDate        string            `json:"startDate"`
	EndDate          string            `json:"endDate"`
	RenterName       string            `json:"renterName"`
	ContactNumber    string            `json:"contactNumber"`
	Note             string            `json:"note"`
	LicenseReference string            `json:"licenseReference"`
	CollateralType   string            `json:"collateralType"`
	Collateral       collateralRequest `json:"collateral"`
}

// legacyBookingRequest is the body the original web client posts to /api/book.
type legacyBookingRequest struct {
	CarID          string            `json:"carId"`
	StartDate      string            `json:"startDate"`
	EndDate        string            `json:"endDate"`
	UserName       string            `json:"userName"`
	MobileNumber   string            `json:"mobileNumber"`
	Note           string            `json:"note"`
	DrivingLicense string            `json:"drivingLicense"`
	CollateralType string            `json:"collateralType"`
	Collateral     collateralRequest `json:"collateral"`
}

func (r legacyBookingRequest) normalize() createBookingRequest {
	return createBookingRequest{
		CarID:            r.CarID,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		RenterName:       r.UserName,
		ContactNumber:    r.MobileNumber,
		Note:             r.Note,
		LicenseReference: r.DrivingLicense,
		CollateralType:   r.CollateralType,
		Collateral:       r.Collateral,
	}
}

func (r createBookingRequest) command(c *gin.Context) bookingapp.ReserveCarCommand {
	return bookingapp.ReserveCarCommand{
		CarID:            r.CarID,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		RequesterID:      c.GetHeader(RequesterHeader),
		RenterName:       r.RenterName,
		ContactNumber:    r.ContactNumber,
		Note:             r.Note,
		LicenseReference: r.LicenseReference,
		CollateralType:   r.CollateralType,
		CollateralAmount: int64(r.Collateral.Amount),
		Gadgets:          r.Collateral.Gadgets,
		Vehicles:         r.Collateral.Vehicles,
		IdempotencyKeyV:  c.GetHeader(IdempotencyHeader),
	}
}

type createBookingResponse struct {
	Booking    dto.Booking `json:"booking"`
	BookedDays []string    `json:"bookedDays"`
}

func (h BookingHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := h.reserve(c, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createBookingResponse{Booking: result.Booking, BookedDays: result.BookedDays})
}

func (h BookingHandler) CreateLegacy(c *gin.Context) {
	var req legacyBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	result, err := h.reserve(c, req.normalize())
	if err != nil {
		writeLegacyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Booking successful",
		"bookedDates": result.BookedDays,
		"booking":     result.Booking,
	})
}

func (h BookingHandler) reserve(c *gin.Context, req createBookingRequest) (*bookingapp.ReserveCarResult, error) {
	return commands.Dispatch[bookingapp.ReserveCarCommand, *bookingapp.ReserveCarResult](c.Request.Context(), h.Commands, req.command(c))
}

func (h BookingHandler) Get(c *gin.Context) {
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, bookingapp.GetBookingQuery{BookingID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListForCar(c *gin.Context) {
	result, err := queries.Ask[bookingapp.ListBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, bookingapp.ListBookingsQuery{CarID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ BookingHTTP = BookingHandler{}
