package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/llehouerou/waves/internal/catalog/catalogerr"
)

// DatePrecision records how much of a DateOrDateTime is meaningful.
type DatePrecision int

const (
	PrecisionYear DatePrecision = iota
	PrecisionYearMonthDay
	PrecisionDateTime
)

// DateOrDateTime holds recorded_at/released_at/released_orig_at values,
// which may be yyyy, yyyymmdd, or a full timestamp (spec.md §3).
// Grounded on the teacher's Tag.Year()/OriginalYear() prefix slicing,
// generalized into a typed value instead of ad hoc string truncation.
type DateOrDateTime struct {
	Precision DatePrecision
	Year      int
	Month     int // 1-12, valid when Precision >= PrecisionYearMonthDay
	Day       int // 1-31, valid when Precision >= PrecisionYearMonthDay
	Time      time.Time
}

// ParseDateOrDateTime accepts "YYYY", "YYYYMMDD", "YYYY-MM-DD", or RFC3339.
func ParseDateOrDateTime(s string) (DateOrDateTime, error) {
	switch len(s) {
	case 4:
		y, err := strconv.Atoi(s)
		if err != nil {
			return DateOrDateTime{}, badDate(s, err)
		}
		return DateOrDateTime{Precision: PrecisionYear, Year: y}, nil
	case 8:
		y, err := strconv.Atoi(s[0:4])
		if err != nil {
			return DateOrDateTime{}, badDate(s, err)
		}
		m, err := strconv.Atoi(s[4:6])
		if err != nil {
			return DateOrDateTime{}, badDate(s, err)
		}
		d, err := strconv.Atoi(s[6:8])
		if err != nil {
			return DateOrDateTime{}, badDate(s, err)
		}
		return DateOrDateTime{Precision: PrecisionYearMonthDay, Year: y, Month: m, Day: d}, nil
	case 10:
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return DateOrDateTime{}, badDate(s, err)
		}
		return DateOrDateTime{Precision: PrecisionYearMonthDay, Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
	default:
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return DateOrDateTime{}, badDate(s, err)
		}
		return DateOrDateTime{Precision: PrecisionDateTime, Year: t.Year(), Month: int(t.Month()), Day: t.Day(), Time: t}, nil
	}
}

func badDate(s string, err error) error {
	return catalogerr.New(catalogerr.BadRequest, catalogerr.Op("parse date"),
		fmt.Sprintf("invalid date %q", s), err)
}

// YYYYMMDD renders the date as a sortable yyyymmdd integer, with missing
// month/day treated as 0, matching the persisted schema column (spec.md §6.1).
func (d DateOrDateTime) YYYYMMDD() int {
	return d.Year*10000 + d.Month*100 + d.Day
}

func (d DateOrDateTime) String() string {
	switch d.Precision {
	case PrecisionYear:
		return fmt.Sprintf("%04d", d.Year)
	case PrecisionYearMonthDay:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	default:
		return d.Time.Format(time.RFC3339)
	}
}
