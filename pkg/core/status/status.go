// Package status normalises service request statuses so that filters and
// displayed labels always agree.
package status

const (
	Available         = "Available"
	Working           = "Working"
	Complete          = "Complete"
	Cancelled         = "Cancelled"
	NoLongerAvailable = "No Longer Available"

	// Raw synonyms sent by the server
	Waiting   = "Waiting"
	Open      = "Open"
	Completed = "Completed"

	// All is the filter key that matches every status
	All = "All"
)

// Normalize maps server status synonyms onto the canonical status.
// Waiting and Open become Available, Completed becomes Complete and anything
// else is returned unchanged. Normalize is idempotent.
func Normalize(s string) string {
	switch s {
	case Waiting, Open:
		return Available
	case Completed:
		return Complete
	default:
		return s
	}
}

// Matches reports whether a raw status satisfies a filter key.
// An empty key or All matches everything.
func Matches(raw, filterKey string) bool {
	if filterKey == "" || filterKey == All {
		return true
	}
	return Normalize(raw) == Normalize(filterKey)
}

// IsTerminal reports whether no further lifecycle transition is possible
func IsTerminal(s string) bool {
	switch Normalize(s) {
	case Complete, Cancelled, NoLongerAvailable:
		return true
	}
	return false
}

// CanTransition reports whether a booking may move from one status to another
func CanTransition(from, to string) bool {
	from, to = Normalize(from), Normalize(to)
	switch from {
	case Available:
		return to == Working || to == Cancelled || to == NoLongerAvailable
	case Working:
		return to == Complete || to == Cancelled
	}
	return false
}
