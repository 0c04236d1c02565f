package injection

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/lantern/pkg/graph"
)

const (
	// DefaultPromptKey is the state key the adapter reads the prompt from.
	DefaultPromptKey = "prompt"
	// DefaultOutputKey is the state key the adapter writes the result to.
	DefaultOutputKey = "injected_prompt"

	// StateKeyOriginalPrompt always carries the untouched input prompt.
	StateKeyOriginalPrompt = "original_prompt"
	// StateKeyApplied is true only when the generation service produced
	// the result and the original prompt survived inside it.
	StateKeyApplied = "injection_applied"
	// StateKeyError carries the absorbed failure when the adapter fell
	// back after a failed service attempt.
	StateKeyError = "injection_error"
)

// Config configures a prompt injection node.
type Config struct {
	// BaseURL of the Ollama-style generation endpoint.
	BaseURL string
	// Model name sent with each generation request.
	Model string
	// Instruction overrides the default transformation framing.
	Instruction string
	// PromptKey is the state key holding the prompt to transform.
	PromptKey string
	// OutputKey is the state key receiving the transformed prompt.
	OutputKey string
	// UseMock skips the service entirely and uses local templates.
	UseMock bool
	// Timeout bounds one generation call.
	Timeout time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
	// Seed drives fallback template selection. Zero derives a
	// deterministic seed from the node id.
	Seed int64
	// CredentialRef names a credential to attach as a bearer token.
	CredentialRef string
	// Credentials resolves CredentialRef. Defaults to the system keyring
	// when a ref is set.
	Credentials CredentialStore
}

// NewNode builds a testing node that injects adversarial content into the
// prompt carried by the state.
//
// The transform never fails: service errors, unusable responses and
// missing prompts all degrade to a local deterministic fallback, and the
// outcome is reported through the injection_applied and injection_error
// state keys instead of an execution failure.
func NewNode(id, name string, cfg Config) *graph.Node {
	if name == "" {
		name = "prompt_injection"
	}
	if cfg.PromptKey == "" {
		cfg.PromptKey = DefaultPromptKey
	}
	if cfg.OutputKey == "" {
		cfg.OutputKey = DefaultOutputKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	client := NewClient(cfg.BaseURL, cfg.Model, cfg.Instruction, httpClient)
	if cfg.CredentialRef != "" {
		creds := cfg.Credentials
		if creds == nil {
			creds = NewKeyringCredentialStore()
		}
		client.WithCredentials(creds, cfg.CredentialRef)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = seedFromString(id)
	}
	selector := NewSelector(seed)

	node := &graph.Node{
		ID:   id,
		Name: name,
		Type: graph.NodeTypeTesting,
		Metadata: map[string]any{
			"base_url":   cfg.BaseURL,
			"model":      cfg.Model,
			"prompt_key": cfg.PromptKey,
			"output_key": cfg.OutputKey,
			"test_type":  "prompt_injection",
		},
	}
	node.Transform = injectTransform(cfg, client, selector)
	return node
}

// injectTransform builds the node's transform function.
func injectTransform(cfg Config, client *Client, selector *Selector) graph.TransformFunc {
	return func(ctx context.Context, state graph.State) (graph.State, error) {
		original := state.GetString(cfg.PromptKey)
		if original == "" {
			err := fmt.Errorf("no prompt found in state with key %q", cfg.PromptKey)
			log.Printf("prompt injection: %v", err)
			return fallbackResult(cfg, original, err), nil
		}

		if cfg.UseMock {
			injected := selector.Pick(original)
			return graph.State{
				cfg.OutputKey:          injected,
				cfg.PromptKey:          original,
				StateKeyOriginalPrompt: original,
				StateKeyApplied:        false,
			}, nil
		}

		injected, err := client.Generate(ctx, original)
		if err == nil && !strings.Contains(injected, original) {
			err = fmt.Errorf("original prompt lost in injection result")
		}
		if err != nil {
			log.Printf("prompt injection: falling back after service failure: %v", err)
			result := fallbackResult(cfg, original, err)
			result[cfg.OutputKey] = selector.Pick(original)
			return result, nil
		}

		return graph.State{
			cfg.OutputKey:          injected,
			cfg.PromptKey:          original,
			StateKeyOriginalPrompt: original,
			StateKeyApplied:        true,
		}, nil
	}
}

// fallbackResult is the degraded output shape: original prompt passed
// through, provenance flag false, absorbed error recorded.
func fallbackResult(cfg Config, original string, cause error) graph.State {
	return graph.State{
		cfg.OutputKey:          original,
		cfg.PromptKey:          original,
		StateKeyOriginalPrompt: original,
		StateKeyApplied:        false,
		StateKeyError:          cause.Error(),
	}
}

// NodeFactory adapts NewNode to the graph parser's testing node hook. The
// YAML config map supports base_url, model, instruction, prompt_key,
// output_key, use_mock, timeout_seconds, seed and credential_ref.
func NodeFactory(id, name string, config map[string]any) (*graph.Node, error) {
	cfg := Config{}

	for key, value := range config {
		switch key {
		case "base_url":
			cfg.BaseURL, _ = value.(string)
		case "model":
			cfg.Model, _ = value.(string)
		case "instruction":
			cfg.Instruction, _ = value.(string)
		case "prompt_key":
			cfg.PromptKey, _ = value.(string)
		case "output_key":
			cfg.OutputKey, _ = value.(string)
		case "use_mock":
			cfg.UseMock, _ = value.(bool)
		case "credential_ref":
			cfg.CredentialRef, _ = value.(string)
		case "timeout_seconds":
			if secs, ok := toInt64(value); ok {
				cfg.Timeout = time.Duration(secs) * time.Second
			}
		case "seed":
			if seed, ok := toInt64(value); ok {
				cfg.Seed = seed
			}
		default:
			return nil, fmt.Errorf("testing node '%s': unknown config key %q", id, key)
		}
	}

	return NewNode(id, name, cfg), nil
}

// toInt64 normalizes the numeric types YAML decoding produces.
func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
