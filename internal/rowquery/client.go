package rowquery

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Client reads interview rows from a serverless SQL query gateway. The
// gateway only accepts read statements; absence of rows is not an error.
type Client struct {
	gatewayURL string
	client     *http.Client
}

// Row is one persisted interview message row. Content is already decoded
// from the base64 transport encoding used by the inline-batch schema.
type Row struct {
	ID        string
	Interview string
	Timestamp int64
	Role      string
	Content   string
	Points    int
}

func NewClient(gatewayURL string) (*Client, error) {
	gatewayURL = strings.TrimRight(strings.TrimSpace(gatewayURL), "/")
	if gatewayURL == "" {
		return nil, fmt.Errorf("row query gateway url is required")
	}
	return &Client{
		gatewayURL: gatewayURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// SumPoints returns the aggregate points for an interview. A missing result
// set resolves to zero.
func (c *Client) SumPoints(ctx context.Context, table, interviewID string) (int, error) {
	if err := validateIdentifier(table); err != nil {
		return 0, err
	}
	if err := validateNumeric(interviewID); err != nil {
		return 0, err
	}

	statement := fmt.Sprintf("select sum(points) from %s where interview = %s", table, interviewID)
	rows, err := c.query(ctx, statement)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for _, v := range rows[0] {
		switch n := v.(type) {
		case float64:
			return int(n), nil
		case nil:
			return 0, nil
		}
	}
	return 0, nil
}

// MessagesFor returns the persisted rows for an interview in timestamp
// order. A missing result set resolves to an empty slice.
func (c *Client) MessagesFor(ctx context.Context, table, interviewID string) ([]Row, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}
	if err := validateNumeric(interviewID); err != nil {
		return nil, err
	}

	statement := fmt.Sprintf("select * from %s where interview = %s", table, interviewID)
	raw, err := c.query(ctx, statement)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(raw))
	for _, m := range raw {
		row := Row{
			ID:        stringField(m, "id"),
			Interview: stringField(m, "interview"),
			Timestamp: intField(m, "timestamp"),
			Role:      stringField(m, "role"),
			Points:    int(intField(m, "points")),
		}
		content, err := base64.StdEncoding.DecodeString(stringField(m, "content"))
		if err != nil {
			return nil, fmt.Errorf("decode content of row %s: %w", row.ID, err)
		}
		row.Content = string(content)
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })
	return rows, nil
}

type gatewayError struct {
	Message string `json:"message"`
}

func (c *Client) query(ctx context.Context, statement string) ([]map[string]any, error) {
	u := c.gatewayURL + "/api/v1/query?statement=" + url.QueryEscape(statement)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create query request: %w", err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query gateway: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read query response: %w", err)
	}

	if res.StatusCode == http.StatusNotFound {
		var gwErr gatewayError
		if json.Unmarshal(body, &gwErr) == nil && strings.EqualFold(strings.TrimSpace(gwErr.Message), "row not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("query status 404: %s", string(body))
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("query status %d: %s", res.StatusCode, string(body))
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode query rows: %w", err)
	}
	return rows, nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

func intField(m map[string]any, key string) int64 {
	if v, ok := m[key].(float64); ok {
		return int64(v)
	}
	return 0
}

func validateIdentifier(table string) error {
	table = strings.TrimSpace(table)
	if table == "" {
		return fmt.Errorf("row query table is required")
	}
	for _, r := range table {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			continue
		}
		return fmt.Errorf("invalid table identifier %q", table)
	}
	return nil
}

func validateNumeric(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("interview id is required")
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return fmt.Errorf("invalid interview id %q", id)
		}
	}
	return nil
}
