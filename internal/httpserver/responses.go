package httpserver

import (
	"encoding/json"

	"github.com/blackmichael/esaver-notifier/internal/domain"
)

type dispatchResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ResponseID string `json:"response_id"`
	Type       string `json:"type,omitempty"`
}

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

type combinedResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Results combinedResults `json:"results"`
}

// combinedResults always carries both keys; a null branch was not attempted.
type combinedResults struct {
	ScheduledNotification *scheduledBranchJSON  `json:"scheduledNotification"`
	FacebookMonitoring    *monitoringBranchJSON `json:"facebookMonitoring"`
}

type scheduledBranchJSON struct {
	Success    bool    `json:"success"`
	Type       string  `json:"type"`
	ResponseID *string `json:"response_id"`
	Error      any     `json:"error"`
}

type monitoringBranchJSON struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	*monitorSummary
}

type monitorResponse struct {
	Success bool   `json:"success"`
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	*monitorSummary
}

type monitorSummary struct {
	PostsAnalyzed       int              `json:"postsAnalyzed"`
	RateUpdatesFound    int              `json:"rateUpdatesFound"`
	NotificationsSent   int              `json:"notificationsSent"`
	NotificationsFailed int              `json:"notificationsFailed"`
	AlreadyNotified     int              `json:"alreadyNotified"`
	Updates             []rateUpdateJSON `json:"updates"`
}

type rateUpdateJSON struct {
	PostID         string       `json:"postId"`
	PostURL        string       `json:"postUrl"`
	ExtractedRate  *json.Number `json:"extractedRate"`
	Skipped        bool         `json:"skipped,omitempty"`
	Success        bool         `json:"success"`
	NotificationID string       `json:"notificationId,omitempty"`
	Error          any          `json:"error,omitempty"`
}

func toMonitorSummary(r *domain.MonitorReport) *monitorSummary {
	updates := make([]rateUpdateJSON, len(r.Updates))
	for i, u := range r.Updates {
		var rate *json.Number
		if u.ExtractedRate.Valid {
			n := json.Number(u.ExtractedRate.Decimal.String())
			rate = &n
		}
		updates[i] = rateUpdateJSON{
			PostID:         u.PostID,
			PostURL:        u.PostURL,
			ExtractedRate:  rate,
			Skipped:        u.Skipped,
			Success:        u.Outcome.Success,
			NotificationID: u.Outcome.ID,
			Error:          u.Outcome.Error,
		}
	}
	return &monitorSummary{
		PostsAnalyzed:       r.PostsAnalyzed,
		RateUpdatesFound:    r.RateUpdatesFound,
		NotificationsSent:   r.NotificationsSent,
		NotificationsFailed: r.NotificationsFailed,
		AlreadyNotified:     r.AlreadyNotified,
		Updates:             updates,
	}
}

func toCombinedResults(r *domain.CombinedResult) combinedResults {
	var out combinedResults

	if b := r.Scheduled; b != nil {
		branch := &scheduledBranchJSON{Success: b.Success, Type: b.Type, Error: b.Error}
		if b.Success {
			id := b.ResponseID
			branch.ResponseID = &id
		}
		out.ScheduledNotification = branch
	}

	if b := r.Monitoring; b != nil {
		branch := &monitoringBranchJSON{Success: b.Success, Error: b.Error}
		if b.Report != nil {
			branch.monitorSummary = toMonitorSummary(b.Report)
		}
		out.FacebookMonitoring = branch
	}

	return out
}
