package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultWebhookTimeout    = 10 * time.Second
	defaultWebhookWorkers    = 2
	defaultWebhookBufferSize = 100
	userAgent                = "credcached/v1"
)

// WebhookEnvelope is the JSON payload POSTed to the webhook endpoint.
type WebhookEnvelope struct {
	// Type identifies the notification kind.
	Type string `json:"type"`
	// SchemaVersion allows consumers to detect breaking changes.
	SchemaVersion string `json:"schemaVersion"`
	// Timestamp is the RFC3339 time the notification was sent.
	Timestamp string `json:"timestamp"`
	// Data is the mutation notice.
	Data Event `json:"data"`
}

type webhookWork struct {
	ctx      context.Context
	envelope WebhookEnvelope
}

// WebhookSenderConfig configures a WebhookSender.
type WebhookSenderConfig struct {
	URL                string
	TimeoutSeconds     int
	InsecureSkipVerify bool
	// RatePerMinute caps outgoing notifications; excess notices are dropped
	// and counted. Zero means 60.
	RatePerMinute int
	// AuthToken is a pre-resolved bearer token. Token rotation requires a
	// service restart.
	AuthToken string
}

// WebhookSender implements Sink by POSTing envelopes to an HTTP endpoint
// through a small worker pool.
type WebhookSender struct {
	httpClient *http.Client
	logger     *zap.Logger
	url        string
	authToken  string
	limiter    *rate.Limiter
	sendCh     chan webhookWork
	wg         sync.WaitGroup
}

// NewWebhookSender creates a WebhookSender. Returns an error if the URL is
// invalid.
func NewWebhookSender(logger *zap.Logger, cfg WebhookSenderConfig) (*WebhookSender, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("webhook URL must include a host")
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = defaultWebhookTimeout
	}
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 60
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // user-configured
		logger.Warn("Webhook TLS certificate verification is disabled — this is insecure",
			zap.String("url", u.Redacted()))
	}

	return &WebhookSender{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger:    logger.Named("webhook-sender"),
		url:       cfg.URL,
		authToken: cfg.AuthToken,
		limiter:   rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), max(1, perMinute/10)),
		sendCh:    make(chan webhookWork, defaultWebhookBufferSize),
	}, nil
}

// Start launches the background workers draining the send channel.
func (ws *WebhookSender) Start(ctx context.Context) {
	for range defaultWebhookWorkers {
		ws.wg.Add(1)
		go ws.worker(ctx)
	}
	ws.logger.Info("Webhook sender started", zap.Int("workers", defaultWebhookWorkers))
}

// Close waits for all workers to finish. Call after the context passed to
// Start is cancelled.
func (ws *WebhookSender) Close() {
	ws.wg.Wait()
}

// Notify implements Sink. The notice is enqueued for async delivery; it is
// dropped (with an error) when the rate limit is exceeded or the buffer is
// full.
func (ws *WebhookSender) Notify(ctx context.Context, event Event) error {
	if !ws.limiter.Allow() {
		webhookSendTotal.WithLabelValues("rate_limited").Inc()
		return fmt.Errorf("webhook notification rate limit exceeded")
	}

	envelope := WebhookEnvelope{
		Type:          "credcache.binding.notification",
		SchemaVersion: "1",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Data:          event,
	}

	select {
	case ws.sendCh <- webhookWork{ctx: ctx, envelope: envelope}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		webhookSendTotal.WithLabelValues("dropped").Inc()
		ws.logger.Warn("Webhook send buffer full, dropping notification",
			zap.String("key", event.Key))
		return fmt.Errorf("webhook send buffer full")
	}
}

// worker drains the send channel. On context cancellation it delivers the
// remaining buffered items before exiting.
func (ws *WebhookSender) worker(ctx context.Context) {
	defer ws.wg.Done()
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case work := <-ws.sendCh:
					drainCtx, cancel := context.WithTimeout(context.Background(), ws.httpClient.Timeout)
					if err := ws.doSend(drainCtx, work.envelope); err != nil {
						ws.logger.Warn("Webhook send failed during shutdown drain", zap.Error(err))
					}
					cancel()
				default:
					return
				}
			}
		case work, ok := <-ws.sendCh:
			if !ok {
				return
			}
			if err := ws.doSend(work.ctx, work.envelope); err != nil {
				ws.logger.Error("Webhook send failed", zap.Error(err))
			}
		}
	}
}

// doSend performs a single HTTP POST.
func (ws *WebhookSender) doSend(ctx context.Context, envelope WebhookEnvelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		webhookSendTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(body))
	if err != nil {
		webhookSendTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if ws.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+ws.authToken)
	}

	resp, err := ws.httpClient.Do(req)
	duration := time.Since(start).Seconds()
	if err != nil {
		webhookSendTotal.WithLabelValues("error").Inc()
		webhookSendDuration.WithLabelValues("error").Observe(duration)
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		webhookSendTotal.WithLabelValues("success").Inc()
		webhookSendDuration.WithLabelValues("success").Observe(duration)
		return nil
	}

	webhookSendTotal.WithLabelValues("error").Inc()
	webhookSendDuration.WithLabelValues("error").Observe(duration)
	return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
}
