package daemon

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"arcam/internal/api"
	"arcam/internal/bridge"
	"arcam/internal/events"
	"arcam/internal/logging"
	"arcam/internal/session"
	"arcam/internal/watchdog"
)

const (
	defaultPollWait = 20 * time.Second
	// maxPollWait stays under the server's write timeout.
	maxPollWait = 25 * time.Second
	// negotiateWriteSlack covers releasing the track after the budget.
	negotiateWriteSlack = 5 * time.Second
)

// pageEvents are the event types the page may post.
var pageEvents = map[events.Type]struct{}{
	events.ARReady:     {},
	events.VideoLoaded: {},
	events.MarkerFound: {},
	events.MarkerLost:  {},
}

func (s *apiServer) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.daemon.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return sess, true
}

func (s *apiServer) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.SessionListResponse{Sessions: api.FromSnapshots(s.daemon.sessions.List())})
}

func (s *apiServer) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.daemon.sessions.Open(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.SessionResponse{Session: api.FromSnapshot(sess.Snapshot())})
}

func (s *apiServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, api.SessionResponse{Session: api.FromSnapshot(sess.Snapshot())})
}

func (s *apiServer) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.sessions.Close(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleCatalog(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req api.CatalogRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeJSON(w, http.StatusOK, api.CatalogResponse{Count: sess.ReportCatalog(req.Devices)})
}

func (s *apiServer) handleNegotiate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	// Negotiation spans several page round trips plus the permission
	// prompt; it outlives the server-wide WriteTimeout.
	budget := s.daemon.cfg.NegotiateTimeout()
	writeBy := time.Now().Add(budget + s.daemon.cfg.BridgeTimeout() + negotiateWriteSlack)
	if err := http.NewResponseController(w).SetWriteDeadline(writeBy); err != nil {
		s.logger.Debug("negotiate write deadline not extended", logging.Error(err))
	}
	ctx, cancel := context.WithTimeout(r.Context(), budget)
	defer cancel()

	out, err := sess.Negotiate(ctx)
	if errors.Is(err, session.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromOutcome(out, err))
}

func (s *apiServer) handleEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req api.EventRequest
	if !s.decode(w, r, &req) {
		return
	}
	typ, known := events.ParseType(strings.TrimSpace(req.Type))
	if _, fromPage := pageEvents[typ]; !known || !fromPage {
		s.writeError(w, http.StatusBadRequest, "unsupported event type "+strconv.Quote(req.Type))
		return
	}
	if err := s.daemon.sessions.Publish(id, events.Event{Type: typ, DeviceID: req.DeviceID, Detail: req.Detail}); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *apiServer) handleLayout(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.session(w, r); !ok {
		return
	}
	var sample watchdog.Sample
	if !s.decode(w, r, &sample) {
		return
	}
	thresholds := watchdog.Thresholds{
		MinCoverage: s.daemon.cfg.Watchdog.MinCoverage,
		MaxOffsetPx: s.daemon.cfg.Watchdog.MaxOffsetPx,
	}
	resp := api.LayoutResponse{}
	if needs, reason := watchdog.NeedsCorrection(sample, thresholds); needs {
		directive := watchdog.Layout()
		expected := directive.Apply(sample)
		resp = api.LayoutResponse{NeedsCorrection: true, Reason: string(reason), Directive: &directive, Expected: &expected}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleHint(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	resp := api.HintResponse{Retry: sess.Board.Retry()}
	if hint, visible := sess.Board.Current(); visible {
		resp.Hint = &hint
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleDebug(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	line := sess.Board.Debug()
	resp := api.DebugResponse{Text: line.Text}
	if !line.At.IsZero() {
		resp.At = line.At.UTC().Format(time.RFC3339Nano)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleCommands is the page's long poll for bridge commands. wait is in
// milliseconds.
func (s *apiServer) handleCommands(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if sess.Bridge == nil {
		s.writeError(w, http.StatusConflict, "session negotiates against local cameras")
		return
	}
	wait := defaultPollWait
	if raw := r.URL.Query().Get("wait"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid wait")
			return
		}
		wait = min(time.Duration(ms)*time.Millisecond, maxPollWait)
	}

	cmds, err := sess.Bridge.Next(r.Context(), wait)
	switch {
	case errors.Is(err, bridge.ErrClosed):
		s.writeError(w, http.StatusGone, err.Error())
		return
	case err != nil:
		// The page went away mid-poll.
		return
	}
	if cmds == nil {
		cmds = []bridge.Command{}
	}
	s.writeJSON(w, http.StatusOK, api.CommandsResponse{Commands: cmds})
}

func (s *apiServer) handleCommandResult(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if sess.Bridge == nil {
		s.writeError(w, http.StatusConflict, "session negotiates against local cameras")
		return
	}
	var reply bridge.Reply
	if !s.decode(w, r, &reply) {
		return
	}
	if err := sess.Bridge.Resolve(mux.Vars(r)["cmd"], reply); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
