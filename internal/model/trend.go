package model

import (
	"fmt"
	"time"

	"github.com/theirongolddev/books/internal/period"
)

// TrendType is the kind of long-lived pattern a trend alert flags.
type TrendType string

const TrendOverspend TrendType = "overspend"

// Severity grades a trend alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// TrendAlert is a standing flag on a (category, tag) that overspent for
// several consecutive months. At most one alert per key is active.
type TrendAlert struct {
	ID                 int64
	Category           string
	Tag                string
	Type               TrendType
	Severity           Severity
	Message            string
	ConsecutiveMonths  int
	AveragePercentUsed float64
	ExcessPercent      float64
	DetectedAt         time.Time
	ResolvedAt         *time.Time
	Active             bool
}

// Key returns the alert's (category, tag) pair.
func (a TrendAlert) Key() Key {
	return Key{Category: a.Category, Tag: a.Tag}
}

// InstantiationRun records one execution of the month instantiation.
type InstantiationRun struct {
	ID       int64
	Period   period.Month
	Created  int
	Existing int
	Errors   int
	Details  string
	RanAt    time.Time
}

// Category is an entry of the advisory category catalogue.
type Category struct {
	ID          int64
	Name        string
	Description string
	Color       string
	SortOrder   int
	Active      bool
}

// Setting is one key-value configuration row.
type Setting struct {
	Key         string
	Value       string
	Description string
	UpdatedAt   time.Time
}

func (s Setting) String() string {
	return fmt.Sprintf("%s=%s", s.Key, s.Value)
}
