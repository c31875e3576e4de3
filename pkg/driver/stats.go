package driver

import "sync/atomic"

// Stats holds the counters for one endpoint.
//
// Counters only move forward. The driver is the only writer; readers such
// as the status server may call Snapshot concurrently.
type Stats struct {
	endpoint  string
	attempted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// NewStats creates zeroed counters for endpoint.
func NewStats(endpoint string) *Stats {
	return &Stats{endpoint: endpoint}
}

// Record counts one sequence attempt.
func (s *Stats) Record(succeeded bool) {
	s.attempted.Add(1)
	if succeeded {
		s.succeeded.Add(1)
	} else {
		s.failed.Add(1)
	}
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Endpoint:  s.endpoint,
		Attempted: s.attempted.Load(),
		Succeeded: s.succeeded.Load(),
		Failed:    s.failed.Load(),
	}
}

// StatsSnapshot is a point-in-time copy of an endpoint's counters.
type StatsSnapshot struct {
	Endpoint  string `json:"endpoint"`
	Attempted int64  `json:"attempted"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
}

// SuccessRate returns succeeded/attempted as a percentage, or 0 when
// nothing was attempted.
func (s StatsSnapshot) SuccessRate() float64 {
	if s.Attempted == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Attempted) * 100
}
