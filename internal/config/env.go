package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Secrets holds the credentials read from the .env-style environment file.
// Only the wake-word access key is unconditionally required; the LLM
// credential is selected by LLMCfg.Provider, and the search credential is
// optional (its absence disables the Answer Path's search step, §4.H).
type Secrets struct {
	WakeWordAccessKey string
	LLMCredential     string
	SearchCredential  string
}

// LoadSecrets loads envFile (if present) into the process environment, then
// resolves the secrets this daemon needs, keyed by the configured LLM
// provider.
func LoadSecrets(envFile string, llmProvider string) (Secrets, error) {
	_ = godotenv.Load(envFile)

	accessKey := os.Getenv("PICOVOICE_ACCESS_KEY")
	if accessKey == "" {
		return Secrets{}, fmt.Errorf("missing required PICOVOICE_ACCESS_KEY")
	}

	var llmCred string
	switch llmProvider {
	case "mistral":
		llmCred = os.Getenv("MISTRAL_API_KEY")
		if llmCred == "" {
			return Secrets{}, fmt.Errorf("missing required MISTRAL_API_KEY for llm.provider=mistral")
		}
	default:
		llmCred = os.Getenv("GROQ_API_KEY")
		if llmCred == "" {
			return Secrets{}, fmt.Errorf("missing required GROQ_API_KEY for llm.provider=groq")
		}
	}

	return Secrets{
		WakeWordAccessKey: accessKey,
		LLMCredential:     llmCred,
		SearchCredential:  os.Getenv("TAVILY_API_KEY"),
	}, nil
}
