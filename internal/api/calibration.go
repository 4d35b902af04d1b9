package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/freedive-data/apnea.report/internal/baseline"
)

// CalibrationStatus bundles labeling progress with the stored baseline, when
// one has been computed.
type CalibrationStatus struct {
	Progress baseline.Progress  `json:"progress"`
	Baseline *baseline.Snapshot `json:"baseline,omitempty"`
}

func (s *Server) showCalibration(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	progress, err := s.calibrator.Progress(r.Context(), s.userID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to compute calibration progress: %v", err))
		return
	}

	snap, err := s.db.LoadSnapshot(r.Context(), s.userID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to load baseline: %v", err))
		return
	}

	status := CalibrationStatus{Progress: progress, Baseline: snap}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write calibration status")
		return
	}
}

func (s *Server) updateCalibration(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	snap, err := s.calibrator.Update(r.Context(), s.userID)
	if err != nil {
		if errors.Is(err, baseline.ErrNoLabeledDives) {
			s.writeJSONError(w, http.StatusConflict,
				"No labeled dives yet; label some dives before calibrating")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to update baseline: %v", err))
		return
	}

	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write baseline")
		return
	}
}
