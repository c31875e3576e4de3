package handlers

import (
	"net/http"

	"github.com/3leaps/jobprobe/pkg/driver"
)

// StatsSource exposes live driver counters.
type StatsSource interface {
	Snapshot() []driver.StatsSnapshot
	Rounds() int
}

// EndpointStats is one entry of the /stats answer.
type EndpointStats struct {
	driver.StatsSnapshot
	SuccessRate float64 `json:"success_rate"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Rounds    int             `json:"rounds"`
	Endpoints []EndpointStats `json:"endpoints"`
}

// StatsHandler returns a handler reporting src's counters.
func StatsHandler(src StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snaps := src.Snapshot()
		resp := StatsResponse{
			Rounds:    src.Rounds(),
			Endpoints: make([]EndpointStats, 0, len(snaps)),
		}
		for _, s := range snaps {
			resp.Endpoints = append(resp.Endpoints, EndpointStats{
				StatsSnapshot: s,
				SuccessRate:   s.SuccessRate(),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
