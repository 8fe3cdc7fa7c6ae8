package provider

import (
	"fmt"
	"strings"

	"github.com/julianshen/aksmigrate/internal/config"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	ollamaBaseURL = "http://localhost:11434/v1"

	defaultAzureAPIVersion = "2024-06-01"
)

// Provider kinds accepted in provider-settings.yaml.
const (
	KindOpenAI           = "ChatOpenAI"
	KindAzureOpenAI      = "AzureChatOpenAI"
	KindOllama           = "ChatOllama"
	KindOpenAICompatible = "OpenAICompatible"
)

// Endpoint is everything a wire client needs to reach a model.
type Endpoint struct {
	BaseURL string
	// APIKey is sent as a bearer token unless Headers already carries
	// the credential.
	APIKey  string
	Headers map[string]string
	Query   map[string]string
	Model   string
}

// ProviderConstructor is a function that creates a new LLMProvider.
type ProviderConstructor func(ep Endpoint) LLMProvider

// registry holds registered provider constructors.
var registry = map[string]ProviderConstructor{}

// RegisterProvider registers a provider constructor by name.
func RegisterProvider(name string, constructor ProviderConstructor) {
	registry[name] = constructor
}

// NewFromSettings creates an LLMProvider for the active entry of
// provider-settings.yaml and returns the model name to request.
func NewFromSettings(entry *config.ProviderEntry) (LLMProvider, string, error) {
	if entry == nil || strings.TrimSpace(entry.Provider) == "" {
		return nil, "", fmt.Errorf("no active provider configured")
	}

	ep, err := ResolveEndpoint(*entry)
	if err != nil {
		return nil, "", err
	}

	constructor, ok := registry["openai"]
	if !ok {
		return nil, "", fmt.Errorf("openai provider not registered")
	}
	return constructor(ep), ep.Model, nil
}

// ResolveEndpoint maps a provider entry to the endpoint it talks to.
func ResolveEndpoint(entry config.ProviderEntry) (Endpoint, error) {
	ep := Endpoint{Model: firstNonEmpty(entry.Arg("model"), entry.Arg("deployment"))}

	switch entry.Provider {
	case KindOpenAI:
		key, err := entry.Key("OPENAI_API_KEY")
		if err != nil {
			return Endpoint{}, fmt.Errorf("resolving OpenAI API key: %w", err)
		}
		ep.BaseURL = firstNonEmpty(entry.Arg("configuration.baseURL"), entry.Arg("baseURL"), openAIBaseURL)
		ep.APIKey = key

	case KindAzureOpenAI:
		key, err := entry.Key("AZURE_OPENAI_API_KEY")
		if err != nil {
			return Endpoint{}, fmt.Errorf("resolving Azure OpenAI API key: %w", err)
		}
		endpoint := strings.TrimRight(entry.Arg("azureOpenAIEndpoint"), "/")
		deployment := entry.Arg("azureOpenAIApiDeploymentName")
		if endpoint == "" || deployment == "" {
			return Endpoint{}, fmt.Errorf("azureOpenAIEndpoint and azureOpenAIApiDeploymentName are required")
		}
		ep.BaseURL = endpoint + "/openai/deployments/" + deployment
		ep.Headers = map[string]string{"api-key": key}
		ep.Query = map[string]string{
			"api-version": firstNonEmpty(entry.Arg("azureOpenAIApiVersion"), defaultAzureAPIVersion),
		}
		if ep.Model == "" {
			ep.Model = deployment
		}

	case KindOllama:
		ep.BaseURL = firstNonEmpty(entry.Arg("baseUrl"), ollamaBaseURL)

	case KindOpenAICompatible:
		ep.BaseURL = firstNonEmpty(entry.Arg("baseURL"), entry.Arg("baseUrl"))
		if ep.BaseURL == "" {
			return Endpoint{}, fmt.Errorf("baseURL is required for %s", KindOpenAICompatible)
		}
		for name := range entry.Environment {
			if strings.HasSuffix(name, "_API_KEY") {
				key, err := entry.Key(name)
				if err != nil {
					return Endpoint{}, fmt.Errorf("resolving %s: %w", name, err)
				}
				ep.APIKey = key
				break
			}
		}

	default:
		return Endpoint{}, fmt.Errorf("unknown provider: %q", entry.Provider)
	}

	return ep, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
