package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/freedive-data/apnea.report/internal/db"
	"github.com/freedive-data/apnea.report/internal/dive"
	"github.com/freedive-data/apnea.report/internal/units"
)

// maxDivesPerQuery caps list responses so an unbounded log stays cheap to
// serve. Clients page with the limit parameter.
const maxDivesPerQuery = 200

// DiveAPI is the wire shape of a stored dive. Without it the response would
// expose the raw storage row; the Discipline and LungVolume fields here are
// the effective labels with manual corrections already applied.
type DiveAPI struct {
	db.DiveRow
	Discipline dive.Discipline `json:"discipline"`
	LungVolume dive.LungVolume `json:"lung_volume"`
}

// DiveToAPI resolves the effective labels onto the storage row.
func DiveToAPI(r db.DiveRow) DiveAPI {
	return DiveAPI{
		DiveRow:    r,
		Discipline: r.FinalDiscipline(),
		LungVolume: r.FinalLungVolume(),
	}
}

// convertDiveUnits applies the server's display units to the depth and
// vertical-speed fields. Storage is always metric.
func (s *Server) convertDiveUnits(d DiveAPI) DiveAPI {
	d.MaxDepth = units.ConvertDepth(d.MaxDepth, s.units)
	d.AvgDepth = units.ConvertDepth(d.AvgDepth, s.units)
	d.DescentRate = s.convertRate(d.DescentRate)
	d.MaxDescentRate = s.convertRate(d.MaxDescentRate)
	d.AscentRate = s.convertRate(d.AscentRate)
	d.MaxAscentRate = s.convertRate(d.MaxAscentRate)
	return d
}

func (s *Server) convertRate(rate *float64) *float64 {
	if rate == nil {
		return nil
	}
	converted := units.ConvertSpeed(*rate, s.units)
	return &converted
}

func (s *Server) listActivities(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, ok := queryInt(r, "limit", 50)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
		return
	}

	activities, err := s.db.Activities(r.Context(), s.userID, limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve activities: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(activities); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write activities")
		return
	}
}

func (s *Server) listDives(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, ok := queryInt(r, "limit", maxDivesPerQuery)
	if !ok {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
		return
	}
	if limit > maxDivesPerQuery {
		limit = maxDivesPerQuery
	}

	var rows []db.DiveRow
	var err error
	if raw := r.URL.Query().Get("activity_id"); raw != "" {
		activityID, ok := queryInt(r, "activity_id", 0)
		if !ok {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'activity_id' parameter")
			return
		}
		rows, err = s.db.DivesByActivity(r.Context(), int64(activityID))
	} else {
		rows, err = s.db.RecentDives(r.Context(), s.userID, limit)
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve dives: %v", err))
		return
	}

	apiDives := make([]DiveAPI, len(rows))
	for i, row := range rows {
		apiDives[i] = s.convertDiveUnits(DiveToAPI(row))
	}

	if err := json.NewEncoder(w).Encode(apiDives); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write dives")
		return
	}
}
