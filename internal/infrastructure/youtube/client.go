package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/pkg/circuitbreaker"
	"streamcast/pkg/retry"
	"streamcast/pkg/validation"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds platform API settings.
type Config struct {
	BaseURL           string
	AccessToken       string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client talks to the live-broadcast platform API and implements
// ports.PlatformBroadcastAPI. All calls share one rate limiter so the
// service stays inside the platform quota regardless of which stage is
// making requests.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.Breaker
	logger  *zap.SugaredLogger
}

// NewClient builds a platform client.
func NewClient(cfg Config, logger *zap.SugaredLogger) ports.PlatformBroadcastAPI {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}

	// Protocol answers from a healthy upstream (invalid transition, quota
	// denials) must not trip the breaker; only infrastructure failures do.
	breakerCfg := circuitbreaker.DefaultConfig()
	breakerCfg.IsFailure = isTransient
	breaker := circuitbreaker.New(breakerCfg)
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("platform circuit breaker state changed", "from", from.String(), "to", to.String())
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: breaker,
		logger:  logger,
	}
}

// transportError is a non-2xx response outside the transition protocol.
type transportError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *transportError) Error() string {
	return fmt.Sprintf("platform returned %d (%s): %s", e.StatusCode, e.Reason, e.Message)
}

func isTransient(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return te.StatusCode >= 500 || te.StatusCode == http.StatusTooManyRequests
	}
	// Network-level failures are worth another try.
	return true
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return c.breaker.Do(func() error {
		return c.doOnce(ctx, method, path, query, body, out)
	})
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae apiError
		_ = json.Unmarshal(data, &ae)
		return &transportError{
			StatusCode: resp.StatusCode,
			Reason:     ae.reason(),
			Message:    ae.Error.Message,
		}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// CreateBroadcast implements ports.PlatformBroadcastAPI.
func (c *Client) CreateBroadcast(ctx context.Context, params domain.BroadcastParams) (domain.BroadcastID, string, error) {
	scheduled := params.ScheduledStart
	if scheduled.IsZero() {
		scheduled = time.Now()
	}

	body := broadcastResource{
		Snippet: &broadcastSnippet{
			Title:              params.Title,
			Description:        params.Description,
			ScheduledStartTime: scheduled.UTC().Format(time.RFC3339),
		},
		Status: &broadcastStatus{PrivacyStatus: params.Visibility},
		// Auto transitions are requested but not relied on: the state machine
		// still drives explicit transitions and treats redundant ones as
		// success.
		ContentDetails: &broadcastContentDetails{
			EnableAutoStart: true,
			EnableAutoStop:  true,
		},
	}

	query := url.Values{"part": {"snippet,status,contentDetails"}}
	var created broadcastResource
	if err := c.do(ctx, http.MethodPost, "/liveBroadcasts", query, body, &created); err != nil {
		return "", "", fmt.Errorf("create broadcast: %w", err)
	}
	if created.ID == "" {
		return "", "", fmt.Errorf("create broadcast: platform returned no id")
	}

	watchURL := "https://www.youtube.com/watch?v=" + created.ID
	c.logger.Infow("broadcast created",
		"broadcast_id", created.ID, "visibility", params.Visibility, "watch_url", watchURL)
	return domain.BroadcastID(created.ID), watchURL, nil
}

// CreateTransportEndpoint implements ports.PlatformBroadcastAPI. The returned
// settings combine the ingestion address with the stream name, which is the
// encoder-side secret.
func (c *Client) CreateTransportEndpoint(ctx context.Context) (domain.EndpointID, domain.EndpointSettings, error) {
	body := streamResource{
		Snippet: &streamSnippet{Title: "streamcast ingest"},
		CDN: &streamCDN{
			FrameRate:     "variable",
			IngestionType: "rtmp",
			Resolution:    "variable",
		},
	}

	query := url.Values{"part": {"snippet,cdn"}}
	var created streamResource
	if err := c.do(ctx, http.MethodPost, "/liveStreams", query, body, &created); err != nil {
		return "", domain.EndpointSettings{}, fmt.Errorf("create transport endpoint: %w", err)
	}
	if created.ID == "" || created.CDN == nil || created.CDN.IngestionInfo == nil {
		return "", domain.EndpointSettings{}, fmt.Errorf("create transport endpoint: platform returned no ingestion info")
	}

	settings := domain.EndpointSettings{
		Server: created.CDN.IngestionInfo.IngestionAddress,
		Key:    created.CDN.IngestionInfo.StreamName,
	}
	if err := validation.ValidateIngestionURL(settings.Server); err != nil {
		return "", domain.EndpointSettings{}, fmt.Errorf("create transport endpoint: %w", err)
	}
	c.logger.Infow("transport endpoint created",
		"endpoint_id", created.ID,
		"server", settings.Server,
		"key", domain.MaskCredential(settings.Key))
	return domain.EndpointID(created.ID), settings, nil
}

// BindBroadcastToEndpoint implements ports.PlatformBroadcastAPI.
func (c *Client) BindBroadcastToEndpoint(ctx context.Context, broadcastID domain.BroadcastID, endpointID domain.EndpointID) error {
	query := url.Values{
		"part":     {"id,contentDetails"},
		"id":       {string(broadcastID)},
		"streamId": {string(endpointID)},
	}
	if err := c.do(ctx, http.MethodPost, "/liveBroadcasts/bind", query, nil, nil); err != nil {
		return fmt.Errorf("bind broadcast %s to endpoint %s: %w", broadcastID, endpointID, err)
	}
	c.logger.Infow("broadcast bound to endpoint",
		"broadcast_id", broadcastID, "endpoint_id", endpointID)
	return nil
}

// GetBroadcastState implements ports.PlatformBroadcastAPI. Reads are
// idempotent, so transient platform errors are retried.
func (c *Client) GetBroadcastState(ctx context.Context, broadcastID domain.BroadcastID) (domain.RemoteState, error) {
	query := url.Values{
		"part": {"status"},
		"id":   {string(broadcastID)},
	}

	var list broadcastListResponse
	retryCfg := retry.DefaultConfig()
	retryCfg.IsRetryable = isTransient
	err := retry.Retry(ctx, retryCfg, func() error {
		list = broadcastListResponse{}
		return c.do(ctx, http.MethodGet, "/liveBroadcasts", query, nil, &list)
	})
	if err != nil {
		return domain.RemoteUnknown, fmt.Errorf("get broadcast state: %w", err)
	}
	if len(list.Items) == 0 || list.Items[0].Status == nil {
		return domain.RemoteUnknown, fmt.Errorf("get broadcast state: broadcast %s not found", broadcastID)
	}

	state := domain.ParseRemoteState(list.Items[0].Status.LifeCycleStatus)
	c.logger.Debugw("broadcast state queried", "broadcast_id", broadcastID, "state", state)
	return state, nil
}

// RequestTransition implements ports.PlatformBroadcastAPI. Redundant and
// invalid transitions come back as outcomes so the state machine can decide;
// only failures outside the protocol surface as errors.
func (c *Client) RequestTransition(ctx context.Context, broadcastID domain.BroadcastID, target domain.RemoteState) (domain.TransitionOutcome, domain.RemoteState, error) {
	query := url.Values{
		"part":            {"status"},
		"id":              {string(broadcastID)},
		"broadcastStatus": {string(target)},
	}

	var updated broadcastResource
	err := c.do(ctx, http.MethodPost, "/liveBroadcasts/transition", query, nil, &updated)
	if err == nil {
		state := domain.RemoteUnknown
		if updated.Status != nil {
			state = domain.ParseRemoteState(updated.Status.LifeCycleStatus)
		}
		c.logger.Infow("transition accepted",
			"broadcast_id", broadcastID, "target", target, "state", state)
		return domain.OutcomeSuccess, state, nil
	}

	var te *transportError
	if errors.As(err, &te) {
		switch {
		case te.Reason == "redundantTransition":
			c.logger.Infow("transition redundant", "broadcast_id", broadcastID, "target", target)
			return domain.OutcomeRedundant, target, nil
		case te.Reason == "invalidTransition":
			c.logger.Warnw("transition invalid", "broadcast_id", broadcastID, "target", target)
			return domain.OutcomeInvalid, domain.RemoteUnknown, nil
		case te.StatusCode >= 500 || te.StatusCode == http.StatusTooManyRequests:
			return domain.OutcomeTransient, domain.RemoteUnknown, fmt.Errorf("transition to %s: %w", target, err)
		}
	}
	return domain.OutcomeFailed, domain.RemoteUnknown, fmt.Errorf("transition to %s: %w", target, err)
}
