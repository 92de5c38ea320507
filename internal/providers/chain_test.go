package providers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) KeyLookup {
	return func(name string) string { return m[name] }
}

func TestLoadChain_Default(t *testing.T) {
	chain, err := LoadChain("", envMap(map[string]string{"GROK_KEY": "g", "OPENAI_API_KEY": "o"}))
	require.NoError(t, err)
	require.Len(t, chain, len(DefaultChain()))

	assert.Equal(t, "xai", chain[0].Name)
	assert.Equal(t, "g", chain[0].APIKey)
	assert.Equal(t, "openai", chain[1].Name)
	assert.Equal(t, "o", chain[1].APIKey)
	assert.False(t, chain[2].HasKey())
}

func TestLoadChain_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	content := `providers:
  - name: Local
    url: http://localhost:11434/v1/chat/completions
    key_env: [LOCAL_KEY]
    models: [llama3, mistral]
    timeout: 5s
  - name: claude
    kind: anthropic
    url: https://api.anthropic.com/v1/messages
    key_env: [MISSING, ANTHROPIC_API_KEY]
    models: [claude-3-5-haiku-latest]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	chain, err := LoadChain(path, envMap(map[string]string{"LOCAL_KEY": "lk", "ANTHROPIC_API_KEY": "ak"}))
	require.NoError(t, err)
	require.Len(t, chain, 2)

	assert.Equal(t, "local", chain[0].Name)
	assert.Equal(t, KindOpenAI, chain[0].Kind)
	assert.Equal(t, []string{"llama3", "mistral"}, chain[0].Models)
	assert.Equal(t, 5*time.Second, chain[0].Timeout)
	assert.Equal(t, "ak", chain[1].APIKey)
	assert.Equal(t, KindAnthropic, chain[1].Kind)
}

func TestLoadChain_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadChain(filepath.Join(dir, "absent.yaml"), nil)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("providers: []\n"), 0o600))
	_, err = LoadChain(empty, nil)
	assert.ErrorContains(t, err, "lists no providers")
}

func TestBuildChain_Validation(t *testing.T) {
	tests := []struct {
		name    string
		entries []ChainEntry
		wantErr string
	}{
		{"missing name", []ChainEntry{{URL: "http://x"}}, "has no name"},
		{"duplicate", []ChainEntry{{Name: "a", URL: "http://x"}, {Name: "A", URL: "http://y"}}, "listed twice"},
		{"bad kind", []ChainEntry{{Name: "a", Kind: "cohere", URL: "http://x"}}, "unknown kind"},
		{"missing url", []ChainEntry{{Name: "a"}}, "has no url"},
		{"bad timeout", []ChainEntry{{Name: "a", URL: "http://x", Timeout: "soon"}}, "bad timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildChain(tt.entries, nil)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestTranslateRequest_OpenAI(t *testing.T) {
	p := Provider{Name: "openai", Kind: KindOpenAI, URL: "https://api.openai.com/v1/chat/completions", APIKey: "sk"}
	req, err := p.TranslateRequest("gpt-4o-mini", "hi")
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk", req.Headers["Authorization"])
	body := req.Body.(map[string]interface{})
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, defaultTemperature, body["temperature"])
}

func TestTranslateRequest_UnknownKind(t *testing.T) {
	_, err := Provider{Name: "x", Kind: "smoke", URL: "http://x"}.TranslateRequest("m", "hi")
	assert.Error(t, err)
}
