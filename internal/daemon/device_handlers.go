package daemon

import (
	"net/http"
	"strings"

	"arcam/internal/api"
	"arcam/internal/logging"
	"arcam/internal/scoring"
)

func (s *apiServer) handleDevices(w http.ResponseWriter, r *http.Request) {
	if s.daemon.catalog == nil {
		s.writeJSON(w, http.StatusOK, api.DevicesResponse{Devices: []api.DeviceEntry{}})
		return
	}
	devs, err := s.daemon.catalog.Enumerate(r.Context())
	if err != nil {
		logging.WarnWithContext(s.logger, "device listing failed", "catalog_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "device list unavailable to the caller"),
		)
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	engine := scoring.NewEngine(scoring.FromConfig(s.daemon.cfg.Scoring))
	s.writeJSON(w, http.StatusOK, api.FromScored(devs, engine.Score(devs)))
}

func (s *apiServer) handleGetPreference(w http.ResponseWriter, r *http.Request) {
	id, ok, err := s.daemon.prefs.Get(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.PreferenceResponse{DeviceID: id, Set: ok})
}

func (s *apiServer) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	var req api.PreferenceRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := strings.TrimSpace(req.DeviceID)
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "deviceId is required")
		return
	}
	if err := s.daemon.prefs.Set(r.Context(), id); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("preferred camera set by hand", logging.String(logging.FieldDeviceID, id))
	s.writeJSON(w, http.StatusOK, api.PreferenceResponse{DeviceID: id, Set: true})
}

func (s *apiServer) handleDeletePreference(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.prefs.Delete(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
