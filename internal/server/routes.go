package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/caretrace/caretrace/internal/affect"
	"github.com/caretrace/caretrace/internal/engagement"
	"github.com/caretrace/caretrace/internal/event"
	"github.com/caretrace/caretrace/internal/memory"
	"github.com/caretrace/caretrace/internal/worker"
)

// handleIngestEvent normalizes and persists an incoming event, then fans out
// side effects: detected needs open engagements, conversational moments with
// free text become memory-write jobs, and every event debounces a scoring
// pass for its subject.
func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var raw event.Raw
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	now := time.Now()
	e, err := event.Normalize(raw, now)
	if err != nil {
		var verr *event.ValidationError
		if errors.As(err, &verr) {
			log.Printf("rejected event for %q: %s (payload: %s)", raw.SubjectID, verr.Reason, verr.Payload)
			writeError(w, http.StatusBadRequest, verr.Reason)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.deps.DB.InsertEvent(e); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if need, ok := e.Meta.(event.NeedMeta); ok {
		if _, err := s.deps.Engagements.CreateFromNeed(e.SubjectID, need, now); err != nil {
			log.Printf("create engagement for %s: %v", e.SubjectID, err)
		}
	}

	if s.deps.Pool != nil {
		if conv, ok := e.Meta.(event.ConversationMeta); ok && conv.Transcript != "" {
			s.enqueueMemoryWrite(e.SubjectID, conv)
		}

		subjectID := e.SubjectID
		s.deps.Pool.Debounce(worker.Job{
			SubjectID: subjectID,
			Kind:      "score",
			Run: func(ctx context.Context) error {
				_, err := s.deps.Risk.Analyze(subjectID, true, time.Now())
				return err
			},
		})
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":     "accepted",
		"event_id":   e.ID,
		"event_type": e.Type,
	})
}

func (s *Server) enqueueMemoryWrite(subjectID string, conv event.ConversationMeta) {
	label := conv.Affect
	if label == "" && s.deps.Detector != nil {
		label, _ = s.deps.Detector.Detect(conv.Transcript)
	}
	actx := affect.NewContext(label)
	if conv.Pitch > 0 {
		actx.Pitch = conv.Pitch
	}
	if conv.Energy > 0 {
		actx.Energy = conv.Energy
	}
	actx.TemporalVariance = conv.Variance

	err := s.deps.Pool.Submit(worker.Job{
		SubjectID: subjectID,
		Kind:      "memory-write",
		Run: func(ctx context.Context) error {
			_, err := s.deps.Memory.Remember(ctx, subjectID, conv.Transcript, actx)
			return err
		},
	})
	if err != nil {
		log.Printf("enqueue memory write: %v", err)
	}
}

func (s *Server) handleLatestScore(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	snapshot, err := s.deps.Risk.Latest(subjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snapshot == nil {
		writeError(w, http.StatusNotFound, "no snapshot for subject")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleScoreHistory(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	history, err := s.deps.Risk.History(subjectID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subject_id": subjectID,
		"snapshots":  history,
		"count":      len(history),
	})
}

func (s *Server) handleTriggerScore(w http.ResponseWriter, r *http.Request) {
	s.analyze(w, r, true)
}

// handleLiveScore is the synchronous low-latency path: same computation,
// no persistence, no queue.
func (s *Server) handleLiveScore(w http.ResponseWriter, r *http.Request) {
	s.analyze(w, r, false)
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request, persist bool) {
	subjectID := chi.URLParam(r, "subjectID")
	snapshot, err := s.deps.Risk.Analyze(subjectID, persist, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleRemember(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	var req struct {
		Content  string  `json:"content"`
		Affect   string  `json:"affect"`
		Pitch    float64 `json:"pitch"`
		Energy   float64 `json:"energy"`
		Variance float64 `json:"variance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}

	label := affect.Label(req.Affect)
	if req.Affect == "" && s.deps.Detector != nil {
		label, _ = s.deps.Detector.Detect(req.Content)
	}
	if req.Affect != "" && !affect.Known(label) {
		writeError(w, http.StatusBadRequest, "unknown affect label")
		return
	}

	actx := affect.NewContext(label)
	if req.Pitch > 0 {
		actx.Pitch = req.Pitch
	}
	if req.Energy > 0 {
		actx.Energy = req.Energy
	}
	actx.TemporalVariance = req.Variance

	m, err := s.deps.Memory.Remember(r.Context(), subjectID, req.Content, actx)
	if err != nil {
		if errors.Is(err, memory.ErrUnavailable) {
			writeUnavailable(w)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":             m.ID,
		"affect":         m.AffectLabel,
		"intensity":      m.Intensity,
		"retention_days": m.RetentionDays,
	})
}

func (s *Server) handleSearchMemories(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	var req struct {
		Query  string `json:"query"`
		Affect string `json:"affect"`
		Limit  int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query required")
		return
	}

	var actx *affect.Context
	if req.Affect != "" {
		if !affect.Known(affect.Label(req.Affect)) {
			writeError(w, http.StatusBadRequest, "unknown affect label")
			return
		}
		ctx := affect.NewContext(affect.Label(req.Affect))
		actx = &ctx
	}

	results, degraded, err := s.deps.Memory.Search(r.Context(), subjectID, req.Query, actx, req.Limit)
	if err != nil {
		if errors.Is(err, memory.ErrUnavailable) {
			writeUnavailable(w)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results":  results,
		"count":    len(results),
		"degraded": degraded,
	})
}

func (s *Server) handleListEngagements(w http.ResponseWriter, r *http.Request) {
	subjectID := r.URL.Query().Get("subject_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	engagements, err := s.deps.DB.ListEngagements(subjectID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"engagements": engagements,
		"count":       len(engagements),
	})
}

func (s *Server) handleGetEngagement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "engagementID")
	e, err := s.deps.DB.GetEngagement(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "engagement not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// transitionHandler builds a handler applying one user-driven state change.
// Invalid transitions are 409s: the state machine rejects them, it never
// silently ignores them.
func (s *Server) transitionHandler(to string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "engagementID")
		note := decodeNote(r)

		e, err := s.deps.Engagements.Advance(id, to, note, time.Now())
		if err != nil {
			var terr *engagement.InvalidTransitionError
			if errors.As(err, &terr) {
				writeError(w, http.StatusConflict, terr.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func (s *Server) handleEscalate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "engagementID")
	note := decodeNote(r)

	e, err := s.deps.Engagements.MarkEscalated(id, note, time.Now())
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func decodeNote(r *http.Request) string {
	var req struct {
		Note string `json:"note"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	return req.Note
}

// handleRunFollowUps is the manual trigger for the follow-up pass. The
// per-day guard in the planner makes repeated triggers safe.
func (s *Server) handleRunFollowUps(w http.ResponseWriter, r *http.Request) {
	plan, err := s.deps.Engagements.RunFollowUps(time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"intents":   plan.Intents,
		"abandoned": plan.Abandon,
	})
}

func (s *Server) handleRunCleanup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DryRun          bool    `json:"dry_run"`
		GraceMultiplier float64 `json:"grace_multiplier"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	report, err := s.deps.Memory.Cleanup(time.Now(), req.GraceMultiplier, req.DryRun)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTaskStatuses(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sched == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Sched.Statuses())
}

func (s *Server) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	letters, err := s.deps.DB.ListDeadLetters(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dead_letters": letters,
		"count":        len(letters),
	})
}
