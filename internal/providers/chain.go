package providers

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// KeyLookup resolves an environment variable name to a secret.
type KeyLookup func(name string) string

// ChainEntry is the file form of a Provider. KeyEnv lists variable names tried in order.
type ChainEntry struct {
	Name    string   `yaml:"name"`
	Kind    Kind     `yaml:"kind"`
	URL     string   `yaml:"url"`
	KeyEnv  []string `yaml:"key_env"`
	Models  []string `yaml:"models"`
	Timeout string   `yaml:"timeout,omitempty"`
}

type chainFile struct {
	Providers []ChainEntry `yaml:"providers"`
}

// DefaultChain is the hand-ordered provider list used when no chain file is configured.
func DefaultChain() []ChainEntry {
	return []ChainEntry{
		{Name: "xai", Kind: KindOpenAI, URL: "https://api.x.ai/v1/chat/completions",
			KeyEnv: []string{"XAI_API_KEY", "GROK_KEY"}, Models: []string{"grok-beta"}},
		{Name: "openai", Kind: KindOpenAI, URL: "https://api.openai.com/v1/chat/completions",
			KeyEnv: []string{"OPENAI_API_KEY", "OPENAI_KEY"}, Models: []string{"gpt-4o-mini"}},
		{Name: "openrouter", Kind: KindOpenAI, URL: "https://openrouter.ai/api/v1/chat/completions",
			KeyEnv: []string{"OPENROUTER_API_KEY"}, Models: []string{"meta-llama/llama-3.1-8b-instruct"}},
		{Name: "groq", Kind: KindOpenAI, URL: "https://api.groq.com/openai/v1/chat/completions",
			KeyEnv: []string{"GROQ_API_KEY"}, Models: []string{"llama-3.1-8b-instant"}},
		{Name: "anthropic", Kind: KindAnthropic, URL: "https://api.anthropic.com/v1/messages",
			KeyEnv: []string{"ANTHROPIC_API_KEY"}, Models: []string{"claude-3-5-haiku-latest"}},
		{Name: "gemini", Kind: KindGemini,
			URL:    "https://generativelanguage.googleapis.com/v1beta/models/{model}:generateContent",
			KeyEnv: []string{"GEMINI_API_KEY"}, Models: []string{"gemini-1.5-flash"}},
		{Name: "mistral", Kind: KindOpenAI, URL: "https://api.mistral.ai/v1/chat/completions",
			KeyEnv: []string{"MISTRAL_API_KEY"}, Models: []string{"mistral-small-latest"}},
		{Name: "perplexity", Kind: KindOpenAI, URL: "https://api.perplexity.ai/chat/completions",
			KeyEnv: []string{"PERPLEXITY_API_KEY"}, Models: []string{"sonar"}},
		{Name: "huggingface", Kind: KindHuggingFace, URL: "https://api-inference.huggingface.co/models/{model}",
			KeyEnv: []string{"HF_TOKEN", "HUGGINGFACE_API_KEY"}, Models: []string{"mistralai/Mistral-7B-Instruct-v0.3"}},
	}
}

// LoadChain reads a YAML chain file, or returns DefaultChain when path is empty.
func LoadChain(path string, lookup KeyLookup) ([]Provider, error) {
	entries := DefaultChain()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading provider chain: %w", err)
		}
		var f chainFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("parsing provider chain %s: %w", path, err)
		}
		if len(f.Providers) == 0 {
			return nil, fmt.Errorf("provider chain %s lists no providers", path)
		}
		entries = f.Providers
	}
	return BuildChain(entries, lookup)
}

// BuildChain resolves keys and validates entries, preserving their order.
func BuildChain(entries []ChainEntry, lookup KeyLookup) ([]Provider, error) {
	seen := make(map[string]bool, len(entries))
	out := make([]Provider, 0, len(entries))
	for i, e := range entries {
		name := strings.ToLower(strings.TrimSpace(e.Name))
		if name == "" {
			return nil, fmt.Errorf("provider #%d has no name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("provider %q listed twice", name)
		}
		seen[name] = true

		kind := e.Kind
		if kind == "" {
			kind = KindOpenAI
		}
		if !kind.Valid() {
			return nil, fmt.Errorf("provider %q: unknown kind %q", name, kind)
		}
		if e.URL == "" {
			return nil, fmt.Errorf("provider %q has no url", name)
		}

		var timeout time.Duration
		if e.Timeout != "" {
			d, err := time.ParseDuration(e.Timeout)
			if err != nil {
				return nil, fmt.Errorf("provider %q: bad timeout: %w", name, err)
			}
			timeout = d
		}

		var key string
		if lookup != nil {
			for _, env := range e.KeyEnv {
				if key = strings.TrimSpace(lookup(env)); key != "" {
					break
				}
			}
		}

		out = append(out, Provider{
			Name:    name,
			Kind:    kind,
			URL:     e.URL,
			APIKey:  key,
			Models:  append([]string(nil), e.Models...),
			Timeout: timeout,
		})
	}
	return out, nil
}
