package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/freedive-data/apnea.report/internal/analysis"
	"github.com/freedive-data/apnea.report/internal/db"
	"github.com/freedive-data/apnea.report/internal/report"
)

// sessionDashboard renders the interactive charts for one activity's dives.
// The full analysis records are rehydrated from storage so the charts show
// the per-sample depth and heart-rate series, not just the summary columns.
func (s *Server) sessionDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	activityID, ok := queryInt(r, "activity_id", 0)
	if !ok || activityID == 0 {
		http.Error(w, "Missing or invalid 'activity_id' parameter", http.StatusBadRequest)
		return
	}

	activity, err := s.db.ActivityByID(r.Context(), int64(activityID))
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, fmt.Sprintf("No activity with id %d", activityID), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to load activity: %v", err), http.StatusInternalServerError)
		return
	}

	rows, err := s.db.DivesByActivity(r.Context(), activity.ID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve dives: %v", err), http.StatusInternalServerError)
		return
	}
	if len(rows) == 0 {
		http.Error(w, "Activity has no analyzed dives", http.StatusNotFound)
		return
	}

	dives := make([]analysis.Dive, 0, len(rows))
	for _, row := range rows {
		var d analysis.Dive
		if err := json.Unmarshal(row.AnalysisJSON, &d); err != nil {
			http.Error(w, fmt.Sprintf("Failed to decode analysis for dive %d: %v", row.DiveNumber, err),
				http.StatusInternalServerError)
			return
		}
		dives = append(dives, d)
	}

	title := activity.Name
	if title == "" {
		title = fmt.Sprintf("Session %s", activity.StartTime.Format("2006-01-02"))
	}
	if err := report.RenderSession(w, title, dives); err != nil {
		http.Error(w, fmt.Sprintf("Failed to render session: %v", err), http.StatusInternalServerError)
		return
	}
}
