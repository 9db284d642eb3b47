package room

import (
	"context"
	"errors"

	"github.com/matelabs/mateview/internal/interview"
	"github.com/matelabs/mateview/internal/protocol"
	"github.com/matelabs/mateview/internal/session"
)

// RunConnection drives one websocket client for a session. It consumes
// parsed inbound frames and emits outbound frames until the context is
// cancelled or the inbound channel closes. The connection enters the lobby
// immediately; operations stay gated until an explicit join.
func (o *Orchestrator) RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error {
	defer close(outbound)

	if err := o.sessions.EnterLobby(s.ID); err != nil {
		var invalid *session.InvalidTransitionError
		if !errors.As(err, &invalid) {
			return err
		}
		// Already past the lobby via the HTTP surface.
	} else {
		o.send(ctx, outbound, protocol.SystemEvent{
			Type:      protocol.TypeSystemEvent,
			SessionID: s.ID,
			Code:      "lobby_entered",
		})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-inbound:
			if !ok {
				return nil
			}
			switch msg := raw.(type) {
			case protocol.ClientControl:
				o.handleControl(ctx, s.ID, msg, outbound)
			case protocol.ClientMessage:
				o.handleExchange(ctx, s.ID, msg, outbound)
			}
		}
	}
}

func (o *Orchestrator) handleControl(ctx context.Context, sessionID string, msg protocol.ClientControl, outbound chan<- any) {
	switch msg.Action {
	case protocol.ActionJoin:
		if err := o.sessions.Join(sessionID); err != nil {
			o.sendError(ctx, outbound, sessionID, "join_failed", "session", false, err)
			return
		}
		o.send(ctx, outbound, protocol.SystemEvent{
			Type:      protocol.TypeSystemEvent,
			SessionID: sessionID,
			Code:      "joined",
		})
	case protocol.ActionLeave:
		if err := o.sessions.Leave(sessionID); err != nil {
			o.sendError(ctx, outbound, sessionID, "leave_failed", "session", false, err)
			return
		}
		o.send(ctx, outbound, protocol.SystemEvent{
			Type:      protocol.TypeSystemEvent,
			SessionID: sessionID,
			Code:      "left",
		})
	case protocol.ActionSave:
		result, err := o.SaveTranscript(ctx, sessionID)
		if err != nil {
			o.sendError(ctx, outbound, sessionID, "save_failed", "persistence", retryable(err), err)
			return
		}
		o.send(ctx, outbound, protocol.SaveResult{
			Type:      protocol.TypeSaveResult,
			SessionID: sessionID,
			Persisted: result.Persisted,
			Points:    result.Points,
		})
	}
}

func (o *Orchestrator) handleExchange(ctx context.Context, sessionID string, msg protocol.ClientMessage, outbound chan<- any) {
	next, err := o.Exchange(ctx, sessionID, msg.Text)
	if err != nil {
		o.sendError(ctx, outbound, sessionID, "exchange_failed", "completion", retryable(err), err)
		return
	}
	// Mirror the two appended entries: the user's answer and the reply.
	for _, m := range next[len(next)-2:] {
		o.send(ctx, outbound, protocol.InterviewMessage{
			Type:      protocol.TypeInterviewMessage,
			SessionID: sessionID,
			ID:        m.ID,
			Timestamp: m.Timestamp,
			Role:      string(m.Role),
			Content:   m.Content,
			Points:    m.Points,
			Saved:     m.Saved,
		})
	}
}

func (o *Orchestrator) send(ctx context.Context, outbound chan<- any, msg any) {
	select {
	case <-ctx.Done():
	case outbound <- msg:
	}
}

func (o *Orchestrator) sendError(ctx context.Context, outbound chan<- any, sessionID, code, source string, retryable bool, err error) {
	o.send(ctx, outbound, protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		Code:      code,
		Source:    source,
		Retryable: retryable,
		Detail:    err.Error(),
	})
}

// retryable reports whether the client may simply retry the same frame.
// Transient provider and persistence failures qualify; guard violations
// and invalid input do not.
func retryable(err error) bool {
	var completion *interview.CompletionError
	var persistence *interview.PersistenceError
	return errors.As(err, &completion) || errors.As(err, &persistence)
}
