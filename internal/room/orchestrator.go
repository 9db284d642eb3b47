package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matelabs/mateview/internal/archive"
	"github.com/matelabs/mateview/internal/contentstore"
	"github.com/matelabs/mateview/internal/interview"
	"github.com/matelabs/mateview/internal/ledger"
	"github.com/matelabs/mateview/internal/observability"
	"github.com/matelabs/mateview/internal/rowquery"
	"github.com/matelabs/mateview/internal/session"
	"github.com/matelabs/mateview/internal/topics"
)

var (
	ErrUnknownTopic     = errors.New("unknown topic")
	ErrInterviewMissing = errors.New("interview not found")
)

// Orchestrator drives the interview lifecycle: opening a session around a
// ledger-backed interview, running question/answer exchanges, and settling
// saves. All transcript mutation happens through the session manager so the
// single-writer discipline holds across HTTP and websocket surfaces.
type Orchestrator struct {
	sessions   *session.Manager
	ledger     ledger.Ledger
	store      contentstore.Store
	rows       *rowquery.Client
	gateway    *interview.Gateway
	reconciler *interview.Reconciler
	points     *interview.PointsReader
	archive    archive.Store
	metrics    *observability.Metrics
	opWindow   *observability.OpWindow
	table      string
}

type Config struct {
	Sessions   *session.Manager
	Ledger     ledger.Ledger
	Store      contentstore.Store
	Rows       *rowquery.Client
	Gateway    *interview.Gateway
	Reconciler *interview.Reconciler
	Points     *interview.PointsReader
	Archive    archive.Store
	Metrics    *observability.Metrics
	OpWindow   *observability.OpWindow
	Table      string
}

func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Sessions == nil || cfg.Ledger == nil || cfg.Gateway == nil || cfg.Reconciler == nil || cfg.Points == nil {
		return nil, fmt.Errorf("orchestrator: missing required dependency")
	}
	o := &Orchestrator{
		sessions:   cfg.Sessions,
		ledger:     cfg.Ledger,
		store:      cfg.Store,
		rows:       cfg.Rows,
		gateway:    cfg.Gateway,
		reconciler: cfg.Reconciler,
		points:     cfg.Points,
		archive:    cfg.Archive,
		metrics:    cfg.Metrics,
		opWindow:   cfg.OpWindow,
		table:      cfg.Table,
	}
	o.sessions.SetExpireHook(func(s *session.Session) {
		if o.metrics != nil {
			o.metrics.ActiveSessions.Dec()
			o.metrics.SessionEvents.WithLabelValues("expired").Inc()
		}
	})
	return o, nil
}

// StartInterview mints a new interview for owner on the given topic and
// waits until the write is confirmed before resolving the assigned id.
func (o *Orchestrator) StartInterview(ctx context.Context, owner, topicID string) (string, error) {
	if _, ok := topics.Find(topicID); !ok {
		return "", ErrUnknownTopic
	}

	tx, err := o.ledger.Start(ctx, owner, topicID)
	if err != nil {
		return "", fmt.Errorf("start interview: %w", err)
	}
	if err := o.ledger.WaitMined(ctx, tx); err != nil {
		return "", fmt.Errorf("start interview not confirmed: %w", err)
	}

	id, err := o.ledger.Find(ctx, owner, topicID)
	if err != nil {
		return "", fmt.Errorf("resolve started interview: %w", err)
	}
	return id, nil
}

// Open resolves an interview's owner and topic from the ledger, rebuilds its
// transcript from persisted state, and opens the session that owns it.
func (o *Orchestrator) Open(ctx context.Context, interviewID string) (*session.Session, error) {
	owner, err := o.ledger.OwnerOf(ctx, interviewID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrInterviewMissing
		}
		return nil, fmt.Errorf("resolve owner: %w", err)
	}
	topicID, err := o.ledger.GetTopic(ctx, interviewID)
	if err != nil {
		return nil, fmt.Errorf("resolve topic: %w", err)
	}
	topic, ok := topics.Find(topicID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topicID)
	}

	persisted, err := o.loadPersisted(ctx, interviewID)
	if err != nil {
		return nil, fmt.Errorf("load persisted transcript: %w", err)
	}

	messages := interview.Assemble(interviewID, topic, persisted)
	s, err := o.sessions.Open(interviewID, owner, topicID, messages)
	if err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.ActiveSessions.Inc()
		o.metrics.SessionEvents.WithLabelValues("opened").Inc()
	}
	return s, nil
}

// loadPersisted rebuilds the saved portion of a transcript from whichever
// store the save mode writes to.
func (o *Orchestrator) loadPersisted(ctx context.Context, interviewID string) ([]interview.Message, error) {
	switch o.reconciler.Mode() {
	case interview.SaveInline:
		if o.rows == nil {
			return nil, nil
		}
		rows, err := o.rows.MessagesFor(ctx, o.table, interviewID)
		if err != nil {
			return nil, err
		}
		out := make([]interview.Message, 0, len(rows))
		for _, row := range rows {
			out = append(out, interview.Message{
				ID:        interview.MessageID(interviewID, row.Timestamp),
				Interview: interviewID,
				Timestamp: row.Timestamp,
				Role:      interview.Role(row.Role),
				Content:   row.Content,
				Points:    row.Points,
				Saved:     true,
			})
		}
		return out, nil
	case interview.SaveBlob:
		params, err := o.ledger.GetParams(ctx, interviewID)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		if params.MessagesURI == "" || o.store == nil {
			return nil, nil
		}
		var stored []interview.Message
		if err := o.store.FetchJSON(ctx, params.MessagesURI, &stored); err != nil {
			return nil, err
		}
		for i := range stored {
			stored[i].Saved = true
		}
		return stored, nil
	default:
		return nil, fmt.Errorf("unknown save mode %q", o.reconciler.Mode())
	}
}

// Exchange appends one question/answer round to the session transcript. The
// session's exchange slot serializes rounds; a save cannot start mid-round.
func (o *Orchestrator) Exchange(ctx context.Context, sessionID, userText string) ([]interview.Message, error) {
	if err := o.sessions.BeginExchange(sessionID); err != nil {
		return nil, err
	}
	defer o.sessions.EndExchange(sessionID)

	s, err := o.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	next, err := o.gateway.AppendExchange(ctx, s.InterviewID, s.Messages(), userText)
	elapsed := time.Since(started)
	if o.opWindow != nil {
		o.opWindow.Observe("exchange", elapsed)
	}
	if err != nil {
		if o.metrics != nil {
			o.metrics.Exchanges.WithLabelValues("error").Inc()
			o.metrics.ProviderErrors.WithLabelValues("completion", "exchange").Inc()
		}
		return nil, err
	}

	if err := o.sessions.SetMessages(sessionID, next); err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.Exchanges.WithLabelValues("ok").Inc()
		o.metrics.ObserveCompletionLatency(elapsed)
		if reply := next[len(next)-1]; reply.Points > 0 {
			o.metrics.PointsAwarded.Add(float64(reply.Points))
		}
	}
	return next, nil
}

// SaveResult reports the outcome of one settled save.
type SaveResult struct {
	Persisted int
	Points    int
}

// SaveTranscript pushes the session's unsaved messages through the
// persistence layer and, on confirmation, mirrors the snapshot into the
// archive. On failure the transcript keeps its unsaved flags for a retry.
func (o *Orchestrator) SaveTranscript(ctx context.Context, sessionID string) (SaveResult, error) {
	if err := o.sessions.BeginSave(sessionID); err != nil {
		return SaveResult{}, err
	}
	defer o.sessions.EndSave(sessionID)

	s, err := o.sessions.Get(sessionID)
	if err != nil {
		return SaveResult{}, err
	}

	mode := string(o.reconciler.Mode())

	started := time.Now()
	next, persisted, err := o.reconciler.Save(ctx, s.InterviewID, s.Messages())
	if o.opWindow != nil {
		o.opWindow.Observe("save_"+mode, time.Since(started))
	}
	if err != nil {
		if o.metrics != nil {
			o.metrics.Saves.WithLabelValues(mode, "error").Inc()
		}
		return SaveResult{}, err
	}

	if err := o.sessions.SetMessages(sessionID, next); err != nil {
		return SaveResult{}, err
	}
	if o.metrics != nil {
		o.metrics.Saves.WithLabelValues(mode, "ok").Inc()
	}

	settled := interview.SumPoints(next)
	if o.archive != nil && persisted > 0 {
		record := archive.TranscriptRecord{
			InterviewID: s.InterviewID,
			Owner:       s.Owner,
			TopicID:     s.TopicID,
			Points:      settled,
			Messages:    next,
		}
		if err := o.archive.PutTranscript(ctx, record); err != nil && o.metrics != nil {
			// The canonical store already confirmed; the mirror can lag.
			o.metrics.ProviderErrors.WithLabelValues("archive", "put").Inc()
		}
	}

	return SaveResult{Persisted: persisted, Points: settled}, nil
}

// Points reads an interview's confirmed point total from the configured
// source. Unsaved rounds are invisible here until a save settles.
func (o *Orchestrator) Points(ctx context.Context, interviewID string) (int, error) {
	return o.points.PointsFor(ctx, interviewID)
}

// Transcript returns the current working transcript of a session.
func (o *Orchestrator) Transcript(sessionID string) ([]interview.Message, error) {
	return o.sessions.Messages(sessionID)
}

// Close ends a session and releases its interview for a future open.
func (o *Orchestrator) Close(sessionID string) error {
	_, err := o.sessions.End(sessionID)
	if err != nil {
		return err
	}
	if o.metrics != nil {
		o.metrics.ActiveSessions.Dec()
		o.metrics.SessionEvents.WithLabelValues("closed").Inc()
	}
	return nil
}
