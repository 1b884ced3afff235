package services

import (
	"strings"

	"github.com/jakechorley/skillconnect/pkg/core/model"
	"github.com/jakechorley/skillconnect/pkg/core/status"
)

// Filter is the user-controlled narrowing of a request list. Zero values match everything.
type Filter struct {
	Search      string
	Status      string // filter key, e.g. "Available" or "All"
	ServiceType string
	MinBudget   *float64
	MaxBudget   *float64
}

// ApplyFilter returns the requests that satisfy every criterion of f, preserving order
func ApplyFilter(reqs []model.ServiceRequest, f Filter) []model.ServiceRequest {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]model.ServiceRequest, 0, len(reqs))
	for _, r := range reqs {
		if search != "" && !matchesSearch(&r, search) {
			continue
		}
		if !status.Matches(r.Status, f.Status) {
			continue
		}
		if f.ServiceType != "" && f.ServiceType != status.All && !strings.EqualFold(r.TypeOfWork, f.ServiceType) {
			continue
		}
		if f.MinBudget != nil && r.Budget < *f.MinBudget {
			continue
		}
		if f.MaxBudget != nil && r.Budget > *f.MaxBudget {
			continue
		}
		out = append(out, r)
	}
	return out
}

// matchesSearch checks typeOfWork, address, notes, requester name and the displayed status label
func matchesSearch(r *model.ServiceRequest, needle string) bool {
	fields := []string{
		r.TypeOfWork,
		r.Address,
		r.Notes,
		requesterName(r),
		status.Normalize(r.Status),
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func requesterName(r *model.ServiceRequest) string {
	if !r.Requester.Resolved() {
		return ""
	}
	return r.Requester.DisplayName()
}

// ExcludeOwn drops requests posted by userID
func ExcludeOwn(reqs []model.ServiceRequest, userID string) []model.ServiceRequest {
	if userID == "" {
		return reqs
	}
	out := make([]model.ServiceRequest, 0, len(reqs))
	for _, r := range reqs {
		if r.RequesterID() == userID {
			continue
		}
		out = append(out, r)
	}
	return out
}
