// Package providers sends prompts to third-party text generation APIs.
package providers

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Kind selects the request/response shape a vendor speaks.
type Kind string

const (
	KindOpenAI      Kind = "openai" // OpenAI-compatible chat completions
	KindAnthropic   Kind = "anthropic"
	KindGemini      Kind = "gemini"
	KindHuggingFace Kind = "huggingface"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 1024
	hfMaxNewTokens     = 512
	defaultTemperature = 0.7
	modelPlaceholder   = "{model}"
)

// Provider is one entry of the failover chain.
type Provider struct {
	Name    string
	Kind    Kind
	URL     string // may contain {model}
	APIKey  string
	Models  []string
	Timeout time.Duration // zero means the dispatcher default
}

// HasKey reports whether the provider can be called at all.
func (p Provider) HasKey() bool {
	return strings.TrimSpace(p.APIKey) != ""
}

// ProviderRequest is a fully shaped HTTP call for one provider and model.
type ProviderRequest struct {
	URL     string
	Headers map[string]string
	Body    interface{}
}

// TranslateRequest shapes prompt into the vendor's request format.
func (p Provider) TranslateRequest(model, prompt string) (*ProviderRequest, error) {
	endpoint := strings.ReplaceAll(p.URL, modelPlaceholder, url.PathEscape(model))
	headers := map[string]string{
		"Content-Type": "application/json",
	}

	switch p.Kind {
	case KindOpenAI:
		headers["Authorization"] = "Bearer " + p.APIKey
		return &ProviderRequest{
			URL:     endpoint,
			Headers: headers,
			Body: map[string]interface{}{
				"model": model,
				"messages": []map[string]string{
					{"role": "user", "content": prompt},
				},
				"temperature": defaultTemperature,
			},
		}, nil

	case KindAnthropic:
		headers["x-api-key"] = p.APIKey
		headers["anthropic-version"] = anthropicVersion
		return &ProviderRequest{
			URL:     endpoint,
			Headers: headers,
			Body: map[string]interface{}{
				"model":      model,
				"max_tokens": anthropicMaxTokens,
				"messages": []map[string]string{
					{"role": "user", "content": prompt},
				},
			},
		}, nil

	case KindGemini:
		headers["x-goog-api-key"] = p.APIKey
		return &ProviderRequest{
			URL:     endpoint,
			Headers: headers,
			Body: map[string]interface{}{
				"contents": []map[string]interface{}{
					{"parts": []map[string]string{{"text": prompt}}},
				},
			},
		}, nil

	case KindHuggingFace:
		headers["Authorization"] = "Bearer " + p.APIKey
		return &ProviderRequest{
			URL:     endpoint,
			Headers: headers,
			Body: map[string]interface{}{
				"inputs": prompt,
				"parameters": map[string]interface{}{
					"max_new_tokens":   hfMaxNewTokens,
					"return_full_text": false,
				},
			},
		}, nil
	}

	return nil, fmt.Errorf("unsupported provider kind %q", p.Kind)
}

// SuccessPath is the gjson path holding the reply text in a successful response.
func (k Kind) SuccessPath() string {
	switch k {
	case KindAnthropic:
		return "content.0.text"
	case KindGemini:
		return "candidates.0.content.parts.0.text"
	case KindHuggingFace:
		return "0.generated_text"
	default:
		return "choices.0.message.content"
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindOpenAI, KindAnthropic, KindGemini, KindHuggingFace:
		return true
	}
	return false
}
