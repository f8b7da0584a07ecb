package providers

import "os"

// envKeyByProvider maps provider names to their convention environment
// variable, per spec §6.
var envKeyByProvider = map[string]string{
	"openai":      "OPENAI_API_KEY",
	"claude":      "CLAUDE_API_KEY",
	"anthropic":   "CLAUDE_API_KEY",
	"gemini":      "GEMINI_API_KEY",
	"grok":        "GROK_API_KEY",
	"groq":        "GROQ_API_KEY",
	"deepseek":    "DEEPSEEK_API_KEY",
	"mistral":     "MISTRAL_API_KEY",
	"huggingface": "HUGGINGFACE_API_KEY",
	"cohere":      "COHERE_API_KEY",
	"voyage":      "VOYAGE_API_KEY",
	"openrouter":  "OPENROUTER_API_KEY",
	"perplexity":  "PERPLEXITY_API_KEY",
}

// ResolveAPIKey implements the API-key resolution order of spec §4.1:
// explicit option -> preconfigured provider block -> <PROVIDER>_API_KEY
// env var -> module default -> empty.
func ResolveAPIKey(provider, fromOption, fromConfigBlock, moduleDefault string) string {
	if fromOption != "" {
		return fromOption
	}
	if fromConfigBlock != "" {
		return fromConfigBlock
	}
	if key, ok := envKeyByProvider[provider]; ok {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return moduleDefault
}

// BedrockCredential substitutes for an API key on the Bedrock service, per
// spec §4.1.
type BedrockCredential struct {
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
	Region             string
}

// ResolveBedrockCredential applies the same resolution order using the AWS
// convention environment variables.
func ResolveBedrockCredential(explicit *BedrockCredential) BedrockCredential {
	if explicit != nil && explicit.AWSAccessKeyID != "" {
		return *explicit
	}
	return BedrockCredential{
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSSessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Region:             os.Getenv("AWS_REGION"),
	}
}
