package loadtest

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
)

// Report statuses reported by the service.
const (
	statusDone   = "done"
	statusFailed = "failed"
)
