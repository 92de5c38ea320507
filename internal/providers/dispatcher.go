package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"arc-backend/internal/logger"
	"arc-backend/internal/models"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// Auto routes through every configured provider.
	Auto = "auto"

	DefaultFallback = "All cores offline. A.R.C. endures."
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 4 << 20
)

var (
	ErrNoContent   = errors.New("response has no content at success path")
	ErrUnsupported = errors.New("provider not supported")
)

// Outcomes reported to the Recorder.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Recorder receives dispatcher measurements. It never influences ordering.
type Recorder interface {
	ObserveAttempt(provider, outcome string, elapsed time.Duration)
	IncFallback()
}

type nopRecorder struct{}

func (nopRecorder) ObserveAttempt(string, string, time.Duration) {}
func (nopRecorder) IncFallback()                                  {}

// Options narrows a single dispatch.
type Options struct {
	Provider string // "" or Auto for the whole chain
	Model    string // forces one model for every tried provider
}

// Result is the outcome of a dispatch. Text is always set.
type Result struct {
	Text     string
	Provider string
	Model    string
	Fallback bool
	Attempts []models.Attempt
}

// Dispatcher tries providers in fixed order until one answers.
type Dispatcher struct {
	providers []Provider
	client    *http.Client
	fallback  string
	timeout   time.Duration
	recorder  Recorder
	log       zerolog.Logger

	mu        sync.RWMutex
	lastTried models.LastTried
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets the client used for provider calls.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

// WithFallback sets the literal returned when every provider fails.
func WithFallback(text string) Option {
	return func(d *Dispatcher) {
		if text != "" {
			d.fallback = text
		}
	}
}

// WithTimeout sets the per-call timeout for providers without their own.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// NewDispatcher creates a dispatcher over providers in the given order.
func NewDispatcher(providers []Provider, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		providers: providers,
		client:    &http.Client{},
		fallback:  DefaultFallback,
		timeout:   defaultTimeout,
		recorder:  nopRecorder{},
		log:       logger.Component("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CompleteText returns the first provider reply for prompt, or the fallback literal.
func (d *Dispatcher) CompleteText(ctx context.Context, prompt string) string {
	return d.Complete(ctx, prompt, Options{}).Text
}

// Complete runs the failover chain. It never returns an error: when nothing answers, the
// result carries the fallback text and Fallback is set.
func (d *Dispatcher) Complete(ctx context.Context, prompt string, opts Options) Result {
	var attempts []models.Attempt

	chain, err := d.selectChain(opts.Provider)
	if err != nil {
		attempts = append(attempts, models.Attempt{Provider: opts.Provider, Skipped: true, Reason: err.Error()})
		return d.fallbackResult(attempts)
	}

	for _, p := range chain {
		if !p.HasKey() {
			attempts = append(attempts, models.Attempt{Provider: p.Name, Skipped: true, Reason: "key missing"})
			d.recorder.ObserveAttempt(p.Name, OutcomeSkipped, 0)
			continue
		}

		modelList := p.Models
		if opts.Model != "" {
			modelList = []string{opts.Model}
		}
		if len(modelList) == 0 {
			attempts = append(attempts, models.Attempt{Provider: p.Name, Skipped: true, Reason: "no models configured"})
			d.recorder.ObserveAttempt(p.Name, OutcomeSkipped, 0)
			continue
		}

		for _, model := range modelList {
			if ctx.Err() != nil {
				attempts = append(attempts, models.Attempt{Provider: p.Name, Model: model, Error: ctx.Err().Error()})
				return d.fallbackResult(attempts)
			}

			d.setLastTried(p.Name, model, "")
			start := time.Now()
			text, status, err := d.call(ctx, p, model, prompt)
			elapsed := time.Since(start)

			if err != nil {
				d.setLastTried(p.Name, model, err.Error())
				d.recorder.ObserveAttempt(p.Name, OutcomeError, elapsed)
				d.log.Warn().Err(err).Str("provider", p.Name).Str("model", model).
					Int("status", status).Dur("elapsed", elapsed).Msg("provider attempt failed")
				attempts = append(attempts, models.Attempt{Provider: p.Name, Model: model, Error: err.Error(), Status: status})
				continue
			}

			d.recorder.ObserveAttempt(p.Name, OutcomeOK, elapsed)
			d.log.Info().Str("provider", p.Name).Str("model", model).Dur("elapsed", elapsed).Msg("provider answered")
			attempts = append(attempts, models.Attempt{Provider: p.Name, Model: model, OK: true, Status: status})
			return Result{Text: text, Provider: p.Name, Model: model, Attempts: attempts}
		}
	}

	return d.fallbackResult(attempts)
}

func (d *Dispatcher) fallbackResult(attempts []models.Attempt) Result {
	d.recorder.IncFallback()
	d.log.Error().Int("attempts", len(attempts)).Msg("all providers failed, returning fallback")
	return Result{Text: d.fallback, Fallback: true, Attempts: attempts}
}

func (d *Dispatcher) selectChain(name string) ([]Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == Auto {
		return d.providers, nil
	}
	for _, p := range d.providers {
		if p.Name == name {
			return []Provider{p}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
}

// call issues one request. status is 0 when no response was received.
func (d *Dispatcher) call(ctx context.Context, p Provider, model, prompt string) (string, int, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = d.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	preq, err := p.TranslateRequest(model, prompt)
	if err != nil {
		return "", 0, err
	}
	body, err := json.Marshal(preq.Body)
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, preq.URL, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", redactURL(err))
	}
	for k, v := range preq.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request failed: %w", redactURL(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", resp.StatusCode, fmt.Errorf("API error (status %d): %s", resp.StatusCode, snippet(raw))
	}
	if !gjson.ValidBytes(raw) {
		return "", resp.StatusCode, fmt.Errorf("malformed response body: %s", snippet(raw))
	}

	text := strings.TrimSpace(gjson.GetBytes(raw, p.Kind.SuccessPath()).String())
	if text == "" {
		return "", resp.StatusCode, ErrNoContent
	}
	return text, resp.StatusCode, nil
}

// redactURL drops the query and userinfo from a transport error's URL. Attempt errors
// reach API responses and logs, and endpoint URLs may carry credentials.
func redactURL(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	u, parseErr := url.Parse(urlErr.URL)
	if parseErr != nil {
		return &url.Error{Op: urlErr.Op, URL: "<redacted>", Err: urlErr.Err}
	}
	u.RawQuery = ""
	u.User = nil
	return &url.Error{Op: urlErr.Op, URL: u.String(), Err: urlErr.Err}
}

func snippet(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func (d *Dispatcher) setLastTried(provider, model, errMsg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastTried = models.LastTried{
		Timestamp: time.Now().UnixMilli(),
		Provider:  provider,
		Model:     model,
		Error:     errMsg,
	}
}

// LastTried returns the most recent attempt.
func (d *Dispatcher) LastTried() models.LastTried {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastTried
}

// Status describes each configured provider without exposing keys.
func (d *Dispatcher) Status() []models.ProviderStatus {
	out := make([]models.ProviderStatus, 0, len(d.providers))
	for _, p := range d.providers {
		out = append(out, models.ProviderStatus{
			Name:       p.Name,
			Kind:       string(p.Kind),
			KeyPresent: p.HasKey(),
			Models:     append([]string{}, p.Models...),
		})
	}
	return out
}
