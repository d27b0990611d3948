package model

import "fmt"

// Urgency is the alert tier of a pending expense, most urgent first.
type Urgency int

const (
	UrgencyOverdue Urgency = iota
	UrgencyDueToday
	UrgencyCritical
	UrgencyImportant
	UrgencyNormal
)

// Urgencies lists every tier in display order.
var Urgencies = []Urgency{UrgencyOverdue, UrgencyDueToday, UrgencyCritical, UrgencyImportant, UrgencyNormal}

func (u Urgency) String() string {
	switch u {
	case UrgencyOverdue:
		return "overdue"
	case UrgencyDueToday:
		return "due_today"
	case UrgencyCritical:
		return "critical"
	case UrgencyImportant:
		return "important"
	case UrgencyNormal:
		return "normal"
	}
	return fmt.Sprintf("urgency(%d)", int(u))
}

// Label is the human-facing name of the tier.
func (u Urgency) Label() string {
	switch u {
	case UrgencyOverdue:
		return "Overdue"
	case UrgencyDueToday:
		return "Due today"
	case UrgencyCritical:
		return "Critical"
	case UrgencyImportant:
		return "Important"
	case UrgencyNormal:
		return "Normal"
	}
	return u.String()
}
