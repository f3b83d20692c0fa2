package stats

import "github.com/mediq-clinic/mediq/services/queue-service/internal/model"

// AverageWaitMinutes is the advertised wait estimate shown on the dashboard.
// It is a business constant, not a measurement.
const AverageWaitMinutes = 15

// FilterAll disables status filtering.
const FilterAll = "all"

// Summary is the dashboard stats block, computed over a filtered result set
// (not the whole table).
type Summary struct {
	Pending         int `json:"pending"`
	InProgress      int `json:"inProgress"`
	Completed       int `json:"completed"`
	Cancelled       int `json:"cancelled"`
	Total           int `json:"total"`
	AverageWaitTime int `json:"averageWaitTime"`
}

func Compute(appts []model.Appointment) Summary {
	s := Summary{
		Total:           len(appts),
		AverageWaitTime: AverageWaitMinutes,
	}
	for _, a := range appts {
		switch a.Status {
		case model.StatusPending:
			s.Pending++
		case model.StatusInProgress:
			s.InProgress++
		case model.StatusCompleted:
			s.Completed++
		case model.StatusCancelled:
			s.Cancelled++
		}
	}
	return s
}

// NormalizeStatusFilter coerces unrecognized status values to FilterAll.
// Deliberately lenient: the dashboard has always sent arbitrary values here
// and expects them to widen the query, not fail it.
func NormalizeStatusFilter(raw string) string {
	if s, ok := model.ParseStatus(raw); ok {
		return string(s)
	}
	return FilterAll
}
