package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/i474232898/smog-density-map/internal/observability"
)

// BreakerConfig controls when the circuit to the service opens.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive transport or 5xx failures
	// that opens the circuit. Zero uses the default of 5.
	MaxFailures uint32
	// Cooldown is how long the circuit stays open before a probe call.
	Cooldown time.Duration
}

var (
	errServerError      = errors.New("server error")
	errUnexpectedStatus = errors.New("unexpected status code")
	errCircuitOpen      = errors.New("circuit breaker open")
	errMissingLocation  = errors.New("response has no location")
	errLengthMismatch   = errors.New("variation reply length mismatch")
)

// Upstream call outcomes, used as metric labels.
const (
	outcomeSuccess      = "success"
	outcomeInvalidInput = "invalid_input"
	outcomeNetwork      = "network_error"
	outcomeBadResponse  = "bad_response"
)

func newBreaker(name string, cfg BreakerConfig, metrics *observability.Metrics) *gobreaker.CircuitBreaker {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if metrics != nil {
				if to == gobreaker.StateOpen {
					metrics.BreakerOpen.Set(1)
				} else {
					metrics.BreakerOpen.Set(0)
				}
			}
		},
	})
}

// executeOnce performs a single call through the circuit breaker. There are
// no retries. Transport failures and 5xx replies without an "error" message
// count against the circuit; a 5xx that explains itself is an answer to that
// request, not an outage. Any reply that arrived is returned for the caller
// to classify.
func executeOnce(cb *gobreaker.CircuitBreaker, send func() (*resty.Response, error)) (*resty.Response, error) {
	var resp *resty.Response

	_, err := cb.Execute(func() (interface{}, error) {
		r, sendErr := send()
		if sendErr != nil {
			return nil, sendErr
		}
		resp = r
		if r.StatusCode() >= http.StatusInternalServerError && serverMessage(r.Body()) == "" {
			return nil, fmt.Errorf("%w: %d", errServerError, r.StatusCode())
		}
		return nil, nil
	})

	switch {
	case err == nil, errors.Is(err, errServerError):
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
	default:
		return nil, err
	}
}

// serverMessage extracts the "error" field of a JSON error body.
func serverMessage(body []byte) string {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Error) == 0 {
		return ""
	}
	var msg string
	if err := json.Unmarshal(payload.Error, &msg); err != nil {
		return ""
	}
	return strings.TrimSpace(msg)
}
