// Package sms delivers verification texts to phone numbers.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kvetinski/identity/internal/telemetry"
)

const (
	DefaultInfobipBaseURL = "https://api.infobip.com"
	DefaultSender         = "Aji Salit"

	infobipPath    = "/sms/2/text/advanced"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 1 << 10
)

var ErrMissingAPIKey = errors.New("sms: infobip api key not configured")

type infobipRequest struct {
	Messages []infobipMessage `json:"messages"`
}

type infobipMessage struct {
	Destinations []infobipDestination `json:"destinations"`
	From         string               `json:"from"`
	Text         string               `json:"text"`
}

type infobipDestination struct {
	To string `json:"to"`
}

// InfobipClient sends single text messages through the Infobip SMS API. A
// send is one HTTP attempt; any transport error or non-2xx status fails it.
type InfobipClient struct {
	apiKey     string
	baseURL    string
	sender     string
	httpClient *http.Client
	metrics    *telemetry.Metrics
}

func NewInfobipClient(apiKey, baseURL, sender string, metrics *telemetry.Metrics) *InfobipClient {
	if baseURL == "" {
		baseURL = DefaultInfobipBaseURL
	}
	if sender == "" {
		sender = DefaultSender
	}

	return &InfobipClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		sender:     sender,
		httpClient: &http.Client{Timeout: defaultTimeout},
		metrics:    metrics,
	}
}

func (c *InfobipClient) Send(ctx context.Context, destination, text string) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "sms.infobip.send")
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, "sms delivery failed")
		}
		c.metrics.ObserveSMS("infobip", status, time.Since(start))
		span.End()
	}()

	if c.apiKey == "" {
		return ErrMissingAPIKey
	}

	raw, err := json.Marshal(infobipRequest{
		Messages: []infobipMessage{{
			Destinations: []infobipDestination{{To: strings.TrimPrefix(destination, "+")}},
			From:         c.sender,
			Text:         text,
		}},
	})
	if err != nil {
		return fmt.Errorf("sms: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+infobipPath, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Authorization", "App "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms: send request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("sms: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}
