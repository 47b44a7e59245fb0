package classifier

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

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Skufu/heartrisk/internal/table"
)

type RemoteConfig struct {
	URL       string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	Features  []string
	Client    *http.Client
}

// Remote forwards predictions to an external model server.
type Remote struct {
	baseURL  string
	features []string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
}

type remoteRequest struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

type remoteResponse struct {
	Predictions []float64 `json:"predictions"`
	Error       string    `json:"error,omitempty"`
}

// rejection is a 4xx answer: the server is healthy, the input is not.
type rejection struct {
	status int
	msg    string
}

func (r *rejection) Error() string {
	return fmt.Sprintf("model server rejected input (%d): %s", r.status, r.msg)
}

func (r *rejection) Unwrap() error { return ErrPrediction }

// Dial checks the model server health endpoint and returns a ready client.
func Dial(ctx context.Context, cfg RemoteConfig) (*Remote, error) {
	if len(cfg.Features) == 0 {
		return nil, &LoadError{Source: cfg.URL, Err: errors.New("no feature columns configured")}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	r := &Remote{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		features: cfg.Features,
		client:   client,
		limiter:  rate.NewLimiter(limit, 1),
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "model-server",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPrediction)
		},
	})

	if err := r.health(ctx); err != nil {
		return nil, &LoadError{Source: r.baseURL, Err: err}
	}
	return r, nil
}

func (r *Remote) Name() string { return "remote:" + r.baseURL }

func (r *Remote) health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %d", resp.StatusCode)
	}
	return nil
}

func (r *Remote) Predict(ctx context.Context, t *table.Table) ([]Label, error) {
	data, err := matrix(t, r.features)
	if err != nil {
		return nil, err
	}
	k := len(r.features)
	rows := make([][]float64, 0, len(data)/k)
	for i := 0; i < len(data); i += k {
		rows = append(rows, data[i:i+k])
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out, err := r.breaker.Execute(func() (interface{}, error) {
		preds, err := r.call(ctx, remoteRequest{Columns: r.features, Rows: rows})
		if err != nil {
			return nil, err
		}
		return preds, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}

	preds := out.([]float64)
	if len(preds) != len(rows) {
		return nil, fmt.Errorf("%w: model server returned %d predictions for %d rows", ErrPrediction, len(preds), len(rows))
	}
	labels := make([]Label, len(preds))
	for i, p := range preds {
		switch p {
		case 0:
			labels[i] = NoDisease
		case 1:
			labels[i] = Disease
		default:
			return nil, fmt.Errorf("%w: model server returned label %v for row %d", ErrPrediction, p, i+1)
		}
	}
	return labels, nil
}

func (r *Remote) call(ctx context.Context, body remoteRequest) ([]float64, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/predict", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	var decoded remoteResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		msg := decoded.Error
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, &rejection{status: resp.StatusCode, msg: msg}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	// a partially decoded reply would read as NoDisease for the skipped rows
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode model server reply: %v", ErrPrediction, decodeErr)
	}
	if decoded.Predictions == nil {
		return nil, fmt.Errorf("%w: response has no predictions", ErrPrediction)
	}
	return decoded.Predictions, nil
}
