package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matelabs/mateview/internal/reliability"
)

var (
	receiptPollBase = 500 * time.Millisecond
	receiptPollCap  = 8 * time.Second
)

// HTTPLedger talks to a signing relay that executes contract reads and
// submits transactions on our behalf. The relay holds the keys; we only see
// call results and transaction hashes.
type HTTPLedger struct {
	baseURL string
	client  *http.Client
}

func NewHTTPLedger(baseURL string) (*HTTPLedger, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("ledger relay url is required")
	}
	return &HTTPLedger{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type relayRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

type relayResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

type relayReceipt struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (l *HTTPLedger) OwnerOf(ctx context.Context, id string) (string, error) {
	var owner string
	err := l.call(ctx, "ownerOf", map[string]any{"id": id}, &owner)
	return owner, err
}

func (l *HTTPLedger) GetTopic(ctx context.Context, id string) (string, error) {
	var topic string
	err := l.call(ctx, "getTopic", map[string]any{"id": id}, &topic)
	return topic, err
}

func (l *HTTPLedger) GetParams(ctx context.Context, id string) (Params, error) {
	var params Params
	err := l.call(ctx, "getParams", map[string]any{"id": id}, &params)
	return params, err
}

func (l *HTTPLedger) Find(ctx context.Context, owner, topicID string) (string, error) {
	var id string
	err := l.call(ctx, "find", map[string]any{"owner": owner, "topic": topicID}, &id)
	return id, err
}

func (l *HTTPLedger) ProfileURI(ctx context.Context, address string) (string, error) {
	var uri string
	err := l.call(ctx, "getURI", map[string]any{"address": address}, &uri)
	return uri, err
}

func (l *HTTPLedger) Start(ctx context.Context, owner, topicID string) (Tx, error) {
	return l.transact(ctx, "start", map[string]any{"owner": owner, "topic": topicID})
}

func (l *HTTPLedger) SaveMessageBatch(ctx context.Context, id string, timestamps []int64, roles, contents []string, points []int) (Tx, error) {
	return l.transact(ctx, "saveMessages", map[string]any{
		"id":         id,
		"timestamps": timestamps,
		"roles":      roles,
		"contents":   contents,
		"points":     points,
	})
}

func (l *HTTPLedger) SaveTranscript(ctx context.Context, id string, aggregatePoints int, messagesURI string) (Tx, error) {
	return l.transact(ctx, "saveMessages", map[string]any{
		"id":          id,
		"points":      aggregatePoints,
		"messagesURI": messagesURI,
	})
}

// WaitMined polls the relay for a transaction receipt until the transaction
// is mined, fails, or the context expires.
func (l *HTTPLedger) WaitMined(ctx context.Context, tx Tx) error {
	if strings.TrimSpace(tx.Hash) == "" {
		return fmt.Errorf("transaction hash is empty")
	}
	for attempt := 0; ; attempt++ {
		receipt, err := l.receipt(ctx, tx.Hash)
		if err != nil {
			return err
		}
		switch receipt.Status {
		case "mined":
			return nil
		case "failed":
			if strings.TrimSpace(receipt.Error) != "" {
				return fmt.Errorf("transaction %s failed: %s", tx.Hash, receipt.Error)
			}
			return fmt.Errorf("transaction %s failed", tx.Hash)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reliability.ExponentialBackoff(attempt, receiptPollBase, receiptPollCap)):
		}
	}
}

func (l *HTTPLedger) call(ctx context.Context, method string, params any, out any) error {
	return l.post(ctx, l.baseURL+"/v1/calls", method, params, out)
}

func (l *HTTPLedger) transact(ctx context.Context, method string, params any) (Tx, error) {
	var tx Tx
	if err := l.post(ctx, l.baseURL+"/v1/transactions", method, params, &tx); err != nil {
		return Tx{}, err
	}
	if strings.TrimSpace(tx.Hash) == "" {
		return Tx{}, fmt.Errorf("relay %s returned no transaction hash", method)
	}
	return tx, nil
}

func (l *HTTPLedger) post(ctx context.Context, url, method string, params any, out any) error {
	payload, err := json.Marshal(relayRequest{ID: uuid.NewString(), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay %s: %w", method, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		if reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return fmt.Errorf("relay %s status %d (retryable): %s", method, res.StatusCode, string(body))
		}
		return fmt.Errorf("relay %s status %d: %s", method, res.StatusCode, string(body))
	}

	var resp relayResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return fmt.Errorf("decode relay %s response: %w", method, err)
	}
	if strings.TrimSpace(resp.Error) != "" {
		return fmt.Errorf("relay %s: %s", method, resp.Error)
	}
	if out == nil {
		return nil
	}
	if len(resp.Result) == 0 {
		return fmt.Errorf("relay %s returned empty result", method)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decode relay %s result: %w", method, err)
	}
	return nil
}

func (l *HTTPLedger) receipt(ctx context.Context, hash string) (relayReceipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/v1/transactions/"+hash, nil)
	if err != nil {
		return relayReceipt{}, fmt.Errorf("create receipt request: %w", err)
	}

	res, err := l.client.Do(req)
	if err != nil {
		return relayReceipt{}, fmt.Errorf("fetch receipt: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		// Relay has not indexed the transaction yet; treat as pending.
		return relayReceipt{Status: "pending"}, nil
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return relayReceipt{}, fmt.Errorf("receipt status %d: %s", res.StatusCode, string(body))
	}

	var receipt relayReceipt
	if err := json.NewDecoder(res.Body).Decode(&receipt); err != nil {
		return relayReceipt{}, fmt.Errorf("decode receipt: %w", err)
	}
	return receipt, nil
}
