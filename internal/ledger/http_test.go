package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPLedgerCallDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/calls" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		var req relayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Method != "ownerOf" {
			t.Fatalf("method = %q, want ownerOf", req.Method)
		}
		if req.ID == "" {
			t.Fatalf("request id should not be empty")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": "0xabc"})
	}))
	defer srv.Close()

	l, err := NewHTTPLedger(srv.URL)
	if err != nil {
		t.Fatalf("NewHTTPLedger() error = %v", err)
	}
	owner, err := l.OwnerOf(context.Background(), "1")
	if err != nil {
		t.Fatalf("OwnerOf() error = %v", err)
	}
	if owner != "0xabc" {
		t.Fatalf("owner = %q, want %q", owner, "0xabc")
	}
}

func TestHTTPLedgerNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	l, _ := NewHTTPLedger(srv.URL)
	if _, err := l.GetParams(context.Background(), "99"); err != ErrNotFound {
		t.Fatalf("GetParams() error = %v, want ErrNotFound", err)
	}
}

func TestHTTPLedgerRelayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "execution reverted"})
	}))
	defer srv.Close()

	l, _ := NewHTTPLedger(srv.URL)
	_, err := l.Start(context.Background(), "0xabc", "javascript")
	if err == nil || !strings.Contains(err.Error(), "execution reverted") {
		t.Fatalf("Start() error = %v, want relay error surfaced", err)
	}
}

func TestHTTPLedgerWaitMinedPollsUntilMined(t *testing.T) {
	oldBase, oldCap := receiptPollBase, receiptPollCap
	receiptPollBase, receiptPollCap = time.Millisecond, 5*time.Millisecond
	defer func() { receiptPollBase, receiptPollCap = oldBase, oldCap }()

	var polls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/transactions/") {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		polls++
		status := "pending"
		if polls >= 3 {
			status = "mined"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status})
	}))
	defer srv.Close()

	l, _ := NewHTTPLedger(srv.URL)
	if err := l.WaitMined(context.Background(), Tx{Hash: "0x1"}); err != nil {
		t.Fatalf("WaitMined() error = %v", err)
	}
	if polls < 3 {
		t.Fatalf("polls = %d, want >= 3", polls)
	}
}

func TestHTTPLedgerWaitMinedFailedTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "failed", "error": "out of gas"})
	}))
	defer srv.Close()

	l, _ := NewHTTPLedger(srv.URL)
	err := l.WaitMined(context.Background(), Tx{Hash: "0x1"})
	if err == nil || !strings.Contains(err.Error(), "out of gas") {
		t.Fatalf("WaitMined() error = %v, want failure reason", err)
	}
}

func TestMockLedgerStartFindAccumulate(t *testing.T) {
	ctx := context.Background()
	l := NewMockLedger()

	tx, err := l.Start(ctx, "0xowner", "javascript")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := l.WaitMined(ctx, tx); err != nil {
		t.Fatalf("WaitMined() error = %v", err)
	}

	id, err := l.Find(ctx, "0xowner", "javascript")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}

	if _, err := l.SaveMessageBatch(ctx, id, []int64{10, 11}, []string{"user", "assistant"}, []string{"YQ==", "Yg=="}, []int{0, 1}); err != nil {
		t.Fatalf("SaveMessageBatch() error = %v", err)
	}
	if _, err := l.SaveMessageBatch(ctx, id, []int64{12}, []string{"assistant"}, []string{"Yw=="}, []int{1}); err != nil {
		t.Fatalf("SaveMessageBatch() error = %v", err)
	}

	params, err := l.GetParams(ctx, id)
	if err != nil {
		t.Fatalf("GetParams() error = %v", err)
	}
	if params.Points != 2 {
		t.Fatalf("params.Points = %d, want 2", params.Points)
	}
	if params.Topic != "javascript" {
		t.Fatalf("params.Topic = %q, want javascript", params.Topic)
	}
}
