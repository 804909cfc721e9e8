package models

import "time"

// JobEvent is the lifecycle notification published on every queue
// transition. Subject consumers key on Status.
type JobEvent struct {
	JobID       string      `json:"job_id"`
	AirlineCode string      `json:"airline_code"`
	Status      JobStatus   `json:"status"`
	Error       string      `json:"error,omitempty"`
	Counters    JobCounters `json:"counters"`
	At          time.Time   `json:"at"`
}
