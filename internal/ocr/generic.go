package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// GenericProvider posts a base64 image to an arbitrary OCR-compatible
// endpoint with bearer authentication. Useful for self-hosted gateways.
type GenericProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewGenericProvider creates a generic provider for the given endpoint.
func NewGenericProvider(apiKey, endpoint string) *GenericProvider {
	return &GenericProvider{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Recognize implements Provider.
func (p *GenericProvider) Recognize(ctx context.Context, image []byte) (map[string]interface{}, error) {
	if p.endpoint == "" {
		return nil, fmt.Errorf("generic ocr: endpoint not configured")
	}

	payload, err := json.Marshal(map[string]string{
		"image": base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return nil, fmt.Errorf("generic ocr: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("generic ocr: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generic ocr: request: %w", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("generic ocr: decode response: %w", err)
	}
	return result, nil
}
