package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPStore pins documents through a pinning service and resolves ipfs://
// URIs through a public gateway.
type HTTPStore struct {
	pinURL     string
	gatewayURL string
	apiKey     string
	client     *http.Client
}

func NewHTTPStore(pinURL, gatewayURL, apiKey string) (*HTTPStore, error) {
	pinURL = strings.TrimRight(strings.TrimSpace(pinURL), "/")
	gatewayURL = strings.TrimRight(strings.TrimSpace(gatewayURL), "/")
	if pinURL == "" {
		return nil, fmt.Errorf("pinning service url is required")
	}
	if gatewayURL == "" {
		gatewayURL = "https://ipfs.io"
	}
	return &HTTPStore{
		pinURL:     pinURL,
		gatewayURL: gatewayURL,
		apiKey:     strings.TrimSpace(apiKey),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

type pinResponse struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

func (s *HTTPStore) UploadJSON(ctx context.Context, doc any) (string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.pinURL+"/v1/pins", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create pin request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pin document: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", fmt.Errorf("pin status %d: %s", res.StatusCode, string(body))
	}

	var pin pinResponse
	if err := json.NewDecoder(res.Body).Decode(&pin); err != nil {
		return "", fmt.Errorf("decode pin response: %w", err)
	}
	uri := strings.TrimSpace(pin.URI)
	if uri == "" && strings.TrimSpace(pin.CID) != "" {
		uri = "ipfs://" + strings.TrimSpace(pin.CID)
	}
	if uri == "" {
		return "", fmt.Errorf("pin response carried neither uri nor cid")
	}
	return uri, nil
}

func (s *HTTPStore) FetchJSON(ctx context.Context, uri string, out any) error {
	resolved, err := s.resolve(uri)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved, nil)
	if err != nil {
		return fmt.Errorf("create fetch request: %w", err)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", uri, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return fmt.Errorf("fetch %s status %d: %s", uri, res.StatusCode, string(body))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode document %s: %w", uri, err)
	}
	return nil
}

func (s *HTTPStore) resolve(uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	switch {
	case strings.HasPrefix(uri, "ipfs://"):
		return s.gatewayURL + "/ipfs/" + strings.TrimPrefix(uri, "ipfs://"), nil
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return uri, nil
	case uri == "":
		return "", fmt.Errorf("document uri is empty")
	default:
		return "", fmt.Errorf("unsupported document uri scheme in %q", uri)
	}
}
