package pipeline

// Defaults for bank-transaction sync runs.
const (
	// DefaultWindowDays is how many days back a sync covers when no window is given.
	DefaultWindowDays = 60

	// DefaultRecentViewSize is how many rows the dashboard bank view shows.
	DefaultRecentViewSize = 40
)
