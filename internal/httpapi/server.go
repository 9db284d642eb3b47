package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/matelabs/mateview/internal/archive"
	"github.com/matelabs/mateview/internal/config"
	"github.com/matelabs/mateview/internal/interview"
	"github.com/matelabs/mateview/internal/ledger"
	"github.com/matelabs/mateview/internal/observability"
	"github.com/matelabs/mateview/internal/profile"
	"github.com/matelabs/mateview/internal/protocol"
	"github.com/matelabs/mateview/internal/room"
	"github.com/matelabs/mateview/internal/session"
	"github.com/matelabs/mateview/internal/topics"
)

type Orchestrator interface {
	StartInterview(ctx context.Context, owner, topicID string) (string, error)
	Open(ctx context.Context, interviewID string) (*session.Session, error)
	Exchange(ctx context.Context, sessionID, userText string) ([]interview.Message, error)
	SaveTranscript(ctx context.Context, sessionID string) (room.SaveResult, error)
	Points(ctx context.Context, interviewID string) (int, error)
	Transcript(sessionID string) ([]interview.Message, error)
	Close(sessionID string) error
	RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error
}

type Server struct {
	cfg          config.Config
	sessions     *session.Manager
	orchestrator Orchestrator
	profiles     *profile.Resolver
	archive      archive.Store
	metrics      *observability.Metrics
	opWindow     *observability.OpWindow
	upgrader     websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Manager, orchestrator Orchestrator, profiles *profile.Resolver, archiveStore archive.Store, metrics *observability.Metrics, opWindow *observability.OpWindow) *Server {
	return &Server{
		cfg:          cfg,
		sessions:     sessions,
		orchestrator: orchestrator,
		profiles:     profiles,
		archive:      archiveStore,
		metrics:      metrics,
		opWindow:     opWindow,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other sites cannot drive an open interview.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/topics", s.handleListTopics)
	r.Get("/v1/topics/{id}", s.handleGetTopic)

	r.Post("/v1/interviews", s.handleStartInterview)
	r.Get("/v1/interviews/{id}", s.handleGetInterview)
	r.Get("/v1/interviews/{id}/points", s.handleGetPoints)
	r.Post("/v1/interviews/{id}/messages", s.handlePostMessage)
	r.Post("/v1/interviews/{id}/save", s.handleSave)
	r.Post("/v1/interviews/{id}/close", s.handleCloseSession)
	r.Get("/v1/interviews/{id}/ws", s.handleInterviewWS)

	r.Get("/v1/profiles/{address}", s.handleGetProfile)
	r.Get("/v1/profiles/{address}/transcripts", s.handleListTranscripts)
	r.Get("/v1/transcripts/{id}", s.handleGetTranscript)

	r.Get("/v1/debug/latency", s.handleDebugLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"save_mode": s.cfg.SaveMode,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleListTopics(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"topics": topics.All()})
}

func (s *Server) handleGetTopic(w http.ResponseWriter, r *http.Request) {
	topic, ok := topics.Find(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "topic_not_found", "unknown topic")
		return
	}
	respondJSON(w, http.StatusOK, topic)
}

type startInterviewRequest struct {
	Owner   string `json:"owner"`
	TopicID string `json:"topic_id"`
}

func (s *Server) handleStartInterview(w http.ResponseWriter, r *http.Request) {
	var req startInterviewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Owner) == "" || strings.TrimSpace(req.TopicID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "owner and topic_id are required")
		return
	}

	id, err := s.orchestrator.StartInterview(r.Context(), req.Owner, req.TopicID)
	if err != nil {
		s.respondOperationError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"interview_id": id})
}

// handleGetInterview opens the session owning an interview if none exists
// yet, and returns the session metadata with the working transcript.
func (s *Server) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	interviewID := chi.URLParam(r, "id")

	sess, err := s.sessions.ByInterview(interviewID)
	if errors.Is(err, session.ErrNotFound) {
		sess, err = s.orchestrator.Open(r.Context(), interviewID)
	}
	if err != nil {
		s.respondOperationError(w, err)
		return
	}

	messages, err := s.orchestrator.Transcript(sess.ID)
	if err != nil {
		s.respondOperationError(w, err)
		return
	}

	// The system prompt seeds the working transcript but is not part of the
	// conversation shown to callers.
	visible := make([]interview.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == interview.RoleSystem {
			continue
		}
		visible = append(visible, m)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"session": session.OpenResponse{
			SessionID:       sess.ID,
			InterviewID:     sess.InterviewID,
			Owner:           sess.Owner,
			TopicID:         sess.TopicID,
			Status:          sess.Status,
			Room:            sess.Room,
			StartedAt:       sess.StartedAt,
			LastActivityAt:  sess.LastActivityAt,
			InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
			MessageCount:    len(visible),
		},
		"messages": visible,
	})
}

func (s *Server) handleGetPoints(w http.ResponseWriter, r *http.Request) {
	points, err := s.orchestrator.Points(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondOperationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"points": points})
}

type postMessageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sess, err := s.sessions.ByInterview(chi.URLParam(r, "id"))
	if err != nil {
		s.respondOperationError(w, err)
		return
	}
	if err := s.sessions.EnsureJoined(sess.ID); err != nil {
		s.respondOperationError(w, err)
		return
	}

	next, err := s.orchestrator.Exchange(r.Context(), sess.ID, req.Text)
	if err != nil {
		s.respondOperationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"messages": next[len(next)-2:],
	})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.ByInterview(chi.URLParam(r, "id"))
	if err != nil {
		s.respondOperationError(w, err)
		return
	}
	if err := s.sessions.EnsureJoined(sess.ID); err != nil {
		s.respondOperationError(w, err)
		return
	}

	result, err := s.orchestrator.SaveTranscript(r.Context(), sess.ID)
	if err != nil {
		s.respondOperationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"persisted": result.Persisted,
		"points":    result.Points,
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.ByInterview(chi.URLParam(r, "id"))
	if err != nil {
		s.respondOperationError(w, err)
		return
	}
	if err := s.orchestrator.Close(sess.ID); err != nil {
		s.respondOperationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "closed"})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	if s.profiles == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "profile resolver not configured")
		return
	}
	p, err := s.profiles.Resolve(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			respondError(w, http.StatusNotFound, "profile_not_found", err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, "profile_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleListTranscripts(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "archive not configured")
		return
	}
	records, err := s.archive.ListByOwner(r.Context(), chi.URLParam(r, "address"), 20)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "archive_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"transcripts": records})
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "archive not configured")
		return
	}
	record, err := s.archive.GetTranscript(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			respondError(w, http.StatusNotFound, "transcript_not_found", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "archive_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, record)
}

func (s *Server) handleDebugLatency(w http.ResponseWriter, _ *http.Request) {
	if s.opWindow == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "latency window not configured")
		return
	}
	respondJSON(w, http.StatusOK, s.opWindow.Snapshot())
}

func (s *Server) handleInterviewWS(w http.ResponseWriter, r *http.Request) {
	interviewID := chi.URLParam(r, "id")

	sess, err := s.sessions.ByInterview(interviewID)
	if errors.Is(err, session.ErrNotFound) {
		sess, err = s.orchestrator.Open(r.Context(), interviewID)
	}
	if err != nil {
		s.respondOperationError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 64)
	outbound := make(chan any, 64)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		_ = s.orchestrator.RunConnection(ctx, sess, inbound, outbound)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sess.ID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(errEvent); err != nil {
				break
			}
			continue
		}

		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

// respondOperationError maps lifecycle errors to stable HTTP statuses.
func (s *Server) respondOperationError(w http.ResponseWriter, err error) {
	var precondition *interview.PreconditionError
	var completion *interview.CompletionError
	var persistence *interview.PersistenceError
	var invalid *session.InvalidTransitionError

	switch {
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, room.ErrInterviewMissing), errors.Is(err, ledger.ErrNotFound):
		respondError(w, http.StatusNotFound, "interview_not_found", err.Error())
	case errors.Is(err, room.ErrUnknownTopic):
		respondError(w, http.StatusNotFound, "topic_not_found", err.Error())
	case errors.Is(err, session.ErrInterviewOpen):
		respondError(w, http.StatusConflict, "interview_open", err.Error())
	case errors.Is(err, session.ErrExchangeInFlight):
		respondError(w, http.StatusConflict, "exchange_in_flight", err.Error())
	case errors.Is(err, session.ErrSaveInFlight):
		respondError(w, http.StatusConflict, "save_in_flight", err.Error())
	case errors.Is(err, session.ErrNotJoined), errors.As(err, &invalid):
		respondError(w, http.StatusConflict, "not_joined", err.Error())
	case errors.As(err, &precondition):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.As(err, &completion):
		respondError(w, http.StatusBadGateway, "completion_failed", err.Error())
	case errors.As(err, &persistence):
		respondError(w, http.StatusBadGateway, "save_failed", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientMessage:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.InterviewMessage:
		return m.Type, true
	case protocol.SaveResult:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
