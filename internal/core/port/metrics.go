package port

// AuthMetrics records authentication outcomes.
type AuthMetrics interface {
	LoginAttempt(outcome string)
	AccountLocked()
	Registration(outcome string)
}
