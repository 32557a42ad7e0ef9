package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	baiduTokenURL       = "https://aip.baidubce.com/oauth/2.0/token"
	baiduDefaultOCRURL  = "https://aip.baidubce.com/rest/2.0/ocr/v1/accurate_basic"
	baiduBankReceiptURL = "https://aip.baidubce.com/rest/2.0/ocr/v1/bank_receipt_new"
)

// BaiduProvider calls the Baidu OCR REST API. It implements both Provider
// and BankReceiptRecognizer, so it can serve as its own escalation target.
type BaiduProvider struct {
	apiKey    string
	secretKey string
	ocrURL    string
	client    *http.Client

	mu    sync.Mutex
	token string
}

// NewBaiduProvider creates a Baidu OCR provider. endpoint overrides the
// default recognition URL when non-empty.
func NewBaiduProvider(apiKey, secretKey, endpoint string) *BaiduProvider {
	ocrURL := endpoint
	if ocrURL == "" {
		ocrURL = baiduDefaultOCRURL
	}
	return &BaiduProvider{
		apiKey:    apiKey,
		secretKey: secretKey,
		ocrURL:    ocrURL,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Recognize implements Provider.
func (p *BaiduProvider) Recognize(ctx context.Context, image []byte) (map[string]interface{}, error) {
	return p.post(ctx, p.ocrURL, url.Values{
		"image":            {base64.StdEncoding.EncodeToString(image)},
		"verify_parameter": {"false"},
		"probability":      {"false"},
		"location":         {"false"},
	})
}

// RecognizeBankReceipt implements BankReceiptRecognizer via the dedicated
// bank_receipt_new endpoint.
func (p *BaiduProvider) RecognizeBankReceipt(ctx context.Context, image []byte) (map[string]interface{}, error) {
	return p.post(ctx, baiduBankReceiptURL, url.Values{
		"image":       {base64.StdEncoding.EncodeToString(image)},
		"probability": {"false"},
		"location":    {"false"},
	})
}

func (p *BaiduProvider) post(ctx context.Context, endpoint string, form url.Values) (map[string]interface{}, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("baidu ocr: access token: %w", err)
	}

	reqURL := endpoint + "?access_token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("baidu ocr: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("baidu ocr: request: %w", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("baidu ocr: decode response: %w", err)
	}
	return result, nil
}

// accessToken fetches and caches the OAuth token. Baidu tokens live for
// thirty days; the cache is only invalidated by process restart.
func (p *BaiduProvider) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" {
		return p.token, nil
	}

	q := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {p.apiKey},
		"client_secret": {p.secretKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baiduTokenURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
		ErrorDesc   string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token response: %s %s", body.Error, body.ErrorDesc)
	}
	p.token = body.AccessToken
	return p.token, nil
}
