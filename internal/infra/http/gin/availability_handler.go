package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentcar/internal/app/dto"
	availabilityapp "rentcar/internal/app/handlers/availability"
	"rentcar/internal/app/queries"
)

type AvailabilityHandler struct {
	Queries queries.Bus
}

// Check answers GET /cars/:id/availability?start=&end=&from=. The answer is
// advisory; only a reservation claims the days.
func (h AvailabilityHandler) Check(c *gin.Context) {
	query := availabilityapp.CheckAvailabilityQuery{
		CarID:     c.Param("id"),
		StartDate: c.Query("start"),
		EndDate:   c.Query("end"),
		From:      c.Query("from"),
	}
	result, err := queries.Ask[availabilityapp.CheckAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Calendar(c *gin.Context) {
	result, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries, availabilityapp.GetCalendarQuery{CarID: c.Param("id")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
