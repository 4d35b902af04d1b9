package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/freedive-data/apnea.report/internal/db"
	"github.com/freedive-data/apnea.report/internal/dive"
)

// LabelRequest records a manual classification for one dive. Either field may
// be omitted to leave that label untouched.
type LabelRequest struct {
	DiveID     int64  `json:"dive_id"`
	Discipline string `json:"discipline,omitempty"`
	LungVolume string `json:"lung_volume,omitempty"`
}

func (s *Server) labelDive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req LabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.DiveID == 0 {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'dive_id'")
		return
	}
	if req.Discipline == "" && req.LungVolume == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Provide 'discipline' or 'lung_volume'")
		return
	}

	var disc *dive.Discipline
	if req.Discipline != "" {
		parsed := dive.ParseDiscipline(req.Discipline)
		if parsed == dive.DisciplineUnknown {
			s.writeJSONError(w, http.StatusBadRequest,
				fmt.Sprintf("Invalid discipline %q", req.Discipline))
			return
		}
		disc = &parsed
	}

	var lung *dive.LungVolume
	if req.LungVolume != "" {
		parsed := dive.ParseLungVolume(req.LungVolume)
		if parsed == dive.LungUnknown {
			s.writeJSONError(w, http.StatusBadRequest,
				fmt.Sprintf("Invalid lung volume %q", req.LungVolume))
			return
		}
		lung = &parsed
	}

	if err := s.db.SetManualLabels(r.Context(), req.DiveID, disc, lung); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.writeJSONError(w, http.StatusNotFound,
				fmt.Sprintf("No dive with id %d", req.DiveID))
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to save labels: %v", err))
		return
	}

	row, err := s.db.GetDive(r.Context(), req.DiveID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to read back dive: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(s.convertDiveUnits(DiveToAPI(*row))); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write dive")
		return
	}
}
