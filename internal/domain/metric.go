package domain

import "time"

// ParsingMetric is the audit row written once per processed message.
type ParsingMetric struct {
	ID            string
	Conversant    string
	UserID        string
	Message       string
	Strategy      string
	Action        Action
	Confidence    float64
	Success       bool
	FailureReason string
	Duration      time.Duration
	CreatedAt     time.Time
}
