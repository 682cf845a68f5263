package dto

import (
	"rentcar/internal/domain/availability"
	"rentcar/internal/domain/shared/daterange"
)

type Calendar struct {
	CarID      string   `json:"car_id"`
	BookedDays []string `json:"booked_days"`
	Version    int64    `json:"version"`
}

type Availability struct {
	CarID            string   `json:"car_id"`
	StartDate        string   `json:"start_date,omitempty"`
	EndDate          string   `json:"end_date,omitempty"`
	Available        bool     `json:"available"`
	Conflicts        []string `json:"conflicts"`
	NextAvailableDay string   `json:"next_available_day"`
}

func MapCalendar(cal *availability.Calendar) Calendar {
	if cal == nil {
		return Calendar{BookedDays: []string{}}
	}
	return Calendar{CarID: string(cal.CarID), BookedDays: cal.BookedDays.Strings(), Version: cal.Version}
}

func DayStrings(days []daterange.DayKey) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = string(d)
	}
	return out
}
