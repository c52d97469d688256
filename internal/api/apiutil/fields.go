package apiutil

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codr1/Shuttlers/internal/db"
	"github.com/codr1/Shuttlers/internal/models"
)

func ParsePositiveInt64Field(raw string, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, FieldError{Field: field, Reason: "is required"}
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, FieldError{Field: field, Reason: "must be greater than 0"}
	}
	return value, nil
}

// ParseOptionalInt64Field returns 0 for an empty value.
func ParseOptionalInt64Field(raw string, field string) (int64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	return ParsePositiveInt64Field(raw, field)
}

func ParseFloatField(raw string, field string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, FieldError{Field: field, Reason: "is required"}
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, FieldError{Field: field, Reason: "must be a number"}
	}
	return value, nil
}

// PathID parses the named path wildcard as a positive id.
func PathID(r *http.Request, key string) (int64, error) {
	return ParsePositiveInt64Field(r.PathValue(key), key)
}

// PageFromQuery reads limit and offset, or page and limit, from the query.
func PageFromQuery(r *http.Request) (db.Page, error) {
	q := r.URL.Query()
	var page db.Page
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return db.Page{}, FieldError{Field: "limit", Reason: "must be a positive integer"}
		}
		page.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return db.Page{}, FieldError{Field: "offset", Reason: "must be 0 or greater"}
		}
		page.Offset = n
	}
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return db.Page{}, FieldError{Field: "page", Reason: "must be a positive integer"}
		}
		size := page.Limit
		if size == 0 {
			size = 20
			page.Limit = size
		}
		page.Offset = (n - 1) * size
	}
	return page, nil
}

// ParseDateField parses a required "YYYY-MM-DD" value.
func ParseDateField(raw string, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, FieldError{Field: field, Reason: "is required"}
	}
	t, err := models.ParseDate(raw)
	if err != nil {
		return time.Time{}, FieldError{Field: field, Reason: "must be a date in YYYY-MM-DD format"}
	}
	return t, nil
}

// ParseOptionalDateField returns the zero time for an empty value.
func ParseOptionalDateField(raw string, field string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return ParseDateField(raw, field)
}

// DateRangeFromQuery reads startDate and endDate.
func DateRangeFromQuery(r *http.Request) (db.DateRange, error) {
	from, err := ParseOptionalDateField(r.URL.Query().Get("startDate"), "startDate")
	if err != nil {
		return db.DateRange{}, err
	}
	to, err := ParseOptionalDateField(r.URL.Query().Get("endDate"), "endDate")
	if err != nil {
		return db.DateRange{}, err
	}
	return db.DateRange{From: from, To: to}, nil
}
