package cartclient

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

	"github.com/sony/gobreaker/v2"
)

var (
	// ErrStale means the server already holds a newer snapshot.
	ErrStale        = errors.New("cart snapshot superseded")
	ErrUnauthorized = errors.New("session rejected by server")
)

// StatusError is a non-2xx response the syncer has no better name for.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ConsecutiveFails uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{MaxRequests: 1, Interval: time.Minute, Timeout: 15 * time.Second, ConsecutiveFails: 3}
}

// HTTPSyncer talks to the cart endpoints. Calls go through a circuit
// breaker so a down server fails fast instead of piling up pushes.
type HTTPSyncer struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
}

func NewHTTPSyncer(baseURL string, client *http.Client, bs BreakerSettings) *HTTPSyncer {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "cart-sync",
		MaxRequests: bs.MaxRequests,
		Interval:    bs.Interval,
		Timeout:     bs.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.ConsecutiveFails
		},
		// answers that prove the server is up do not count against it
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil ||
				errors.Is(err, ErrStale) ||
				errors.Is(err, ErrUnauthorized) ||
				(errors.As(err, &se) && se.Code < http.StatusInternalServerError)
		},
	})
	return &HTTPSyncer{baseURL: strings.TrimRight(baseURL, "/"), client: client, cb: cb}
}

type pushRequest struct {
	CartItems map[string]int `json:"cartItems"`
	Seq       int64          `json:"seq,omitempty"`
}

type cartResponse struct {
	UserID    string         `json:"user_id"`
	CartItems map[string]int `json:"cart_items"`
	Seq       int64          `json:"seq"`
}

func (s *HTTPSyncer) Push(ctx context.Context, token string, items map[string]int, seq int64) error {
	body, err := json.Marshal(pushRequest{CartItems: items, Seq: seq})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.do(ctx, http.MethodPost, "/api/cart/update", token, body)
	return err
}

func (s *HTTPSyncer) Fetch(ctx context.Context, token string) (RemoteCart, error) {
	raw, err := s.do(ctx, http.MethodGet, "/api/cart", token, nil)
	if err != nil {
		return RemoteCart{}, err
	}
	var resp cartResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return RemoteCart{}, fmt.Errorf("decode cart: %w", err)
	}
	if resp.CartItems == nil {
		resp.CartItems = map[string]int{}
	}
	return RemoteCart{Items: resp.CartItems, Seq: resp.Seq}, nil
}

func (s *HTTPSyncer) do(ctx context.Context, method, path, token string, body []byte) ([]byte, error) {
	return s.cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return raw, nil
		case resp.StatusCode == http.StatusConflict:
			return nil, ErrStale
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, ErrUnauthorized
		default:
			return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		}
	})
}
