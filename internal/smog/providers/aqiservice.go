package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/i474232898/smog-density-map/internal/observability"
	"github.com/i474232898/smog-density-map/internal/smog"
)

// AQIClient implements smog.Fetcher against the air-quality service.
type AQIClient struct {
	name    string
	client  *resty.Client
	circuit *gobreaker.CircuitBreaker
	metrics *observability.Metrics
}

// NewAQIClient creates a client for the service at baseURL. Every call is a
// single attempt bounded by timeout.
func NewAQIClient(baseURL string, timeout time.Duration, breaker BreakerConfig, metrics *observability.Metrics) *AQIClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &AQIClient{
		name:    "aqi-service",
		client:  client,
		circuit: newBreaker("aqi-service", breaker, metrics),
		metrics: metrics,
	}
}

func (c *AQIClient) Name() string {
	return c.name
}

// FetchSample implements smog.Fetcher.
func (c *AQIClient) FetchSample(ctx context.Context, coord smog.Coordinate) (smog.Sample, error) {
	loc, err := smog.ParseCoordinate(coord)
	if err != nil {
		c.count("sample", outcomeInvalidInput)
		return smog.Sample{}, err
	}

	body, err := c.do("sample", func() (*resty.Response, error) {
		return c.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"lat": formatDegrees(loc.Lat),
				"lng": formatDegrees(loc.Lng),
			}).
			Get("/aqi-data")
	})
	if err != nil {
		return smog.Sample{}, err
	}

	var sample smog.Sample
	if err := json.Unmarshal(body, &sample); err != nil {
		c.count("sample", outcomeBadResponse)
		return smog.Sample{}, smog.BadResponse(fmt.Errorf("decode sample: %w", err))
	}
	if sample.Location == nil {
		c.count("sample", outcomeBadResponse)
		return smog.Sample{}, smog.BadResponse(errMissingLocation)
	}

	c.count("sample", outcomeSuccess)
	return sample, nil
}

// FetchVariation implements smog.Fetcher.
func (c *AQIClient) FetchVariation(ctx context.Context, samples []smog.Sample) ([]smog.Sample, error) {
	body, err := c.do("variation", func() (*resty.Response, error) {
		return c.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(samples).
			Post("/smog-variation")
	})
	if err != nil {
		return nil, err
	}

	var varied []smog.Sample
	if err := json.Unmarshal(body, &varied); err != nil {
		c.count("variation", outcomeBadResponse)
		return nil, smog.BadResponse(fmt.Errorf("decode variation: %w", err))
	}
	if len(varied) != len(samples) {
		c.count("variation", outcomeBadResponse)
		return nil, smog.BadResponse(fmt.Errorf("%w: sent %d, got %d", errLengthMismatch, len(samples), len(varied)))
	}
	for i := range varied {
		if varied[i].Location == nil {
			c.count("variation", outcomeBadResponse)
			return nil, smog.BadResponse(fmt.Errorf("item %d: %w", i, errMissingLocation))
		}
	}

	c.count("variation", outcomeSuccess)
	return varied, nil
}

// do sends one request and returns the body of a 2xx reply. Everything else
// becomes a smog.ErrNetwork error.
func (c *AQIClient) do(op string, send func() (*resty.Response, error)) ([]byte, error) {
	start := time.Now()
	resp, err := executeOnce(c.circuit, send)
	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		c.count(op, outcomeNetwork)
		if errors.Is(err, errCircuitOpen) {
			return nil, smog.NetworkError(smog.MsgServiceUnavailable, err)
		}
		return nil, smog.NetworkError("", err)
	}

	if !resp.IsSuccess() {
		c.count(op, outcomeNetwork)
		msg := serverMessage(resp.Body())
		if msg == "" {
			msg = smog.MsgFetchFailed
		}
		return nil, smog.NetworkError(msg, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode()))
	}

	return resp.Body(), nil
}

func (c *AQIClient) count(op, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamRequests.WithLabelValues(op, outcome).Inc()
}

func formatDegrees(d smog.Degrees) string {
	return strconv.FormatFloat(float64(d), 'f', -1, 64)
}
