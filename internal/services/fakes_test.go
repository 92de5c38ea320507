package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"arc-backend/internal/models"
	"arc-backend/internal/providers"
)

// fakeCompleter answers from a script, keyed by a substring of the prompt.
type fakeCompleter struct {
	mu      sync.Mutex
	prompts []string
	opts    []providers.Options
	reply   func(prompt string) providers.Result
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string, opts providers.Options) providers.Result {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	if f.reply == nil {
		return providers.Result{Text: "ok", Provider: "fake", Model: "m"}
	}
	return f.reply(prompt)
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func answer(text string) providers.Result {
	return providers.Result{Text: text, Provider: "fake", Model: "m",
		Attempts: []models.Attempt{{Provider: "fake", Model: "m", OK: true}}}
}

func fallback() providers.Result {
	return providers.Result{Text: providers.DefaultFallback, Fallback: true}
}

func roleOf(prompt string) string {
	i := strings.LastIndex(prompt, "ROLE: ")
	if i < 0 {
		return ""
	}
	rest := prompt[i+len("ROLE: "):]
	return strings.TrimSpace(strings.SplitN(rest, "\n", 2)[0])
}

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

// brokenStore fails every operation.
type brokenStore struct{}

var errBroken = errors.New("store offline")

func (brokenStore) Load(context.Context, string) ([]models.Message, error) { return nil, errBroken }
func (brokenStore) Save(context.Context, string, []models.Message) error  { return errBroken }
func (brokenStore) AddFact(context.Context, string) (*models.Fact, error) { return nil, errBroken }
func (brokenStore) ListFacts(context.Context, int) ([]models.Fact, error) { return nil, errBroken }
func (brokenStore) LogAlert(context.Context, string) (*models.Alert, error) {
	return nil, errBroken
}
func (brokenStore) LastAlert(context.Context) (*models.Alert, error) { return nil, errBroken }
func (brokenStore) SaveCouncilLog(context.Context, string, []models.CouncilEvent) (*models.CouncilLog, error) {
	return nil, errBroken
}
func (brokenStore) LastCouncilLog(context.Context) (*models.CouncilLog, error) { return nil, errBroken }
func (brokenStore) CouncilLog(context.Context, string) (*models.CouncilLog, error) {
	return nil, errBroken
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{counts: map[string]int{}}
}

func (r *countingRecorder) inc(k string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[k]++
}

func (r *countingRecorder) get(k string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[k]
}

func (r *countingRecorder) IncUnlock(result string)   { r.inc("unlock:" + result) }
func (r *countingRecorder) IncPersistError(op string) { r.inc("persist:" + op) }
func (r *countingRecorder) IncSpeech(result string)   { r.inc("speech:" + result) }
