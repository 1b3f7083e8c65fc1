package config

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name   string       `json:"name"`
	Source APIKeySource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "gsk...abc"
}

// CheckAPIKeys returns the status of all required API keys.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	return []KeyStatus{
		checkKey("Groq API Key", cfg.LLM.GroqKey, "IBEXAI_LLM_GROQ_KEY", "GROQ_API_KEY"),
		checkKey("OpenAI API Key", cfg.LLM.OpenAIKey, "IBEXAI_LLM_OPENAI_KEY", "OPENAI_API_KEY"),
		checkKey("Mailgun API Key", cfg.Email.MailgunKey, "IBEXAI_EMAIL_MAILGUN_KEY"),
		checkKey("SMTP Password", cfg.Email.SMTPPassword, "IBEXAI_EMAIL_SMTP_PASSWORD"),
	}
}

// HasLLMCredential reports whether the configured primary backend can authenticate.
// Ollama needs no key.
func HasLLMCredential(cfg *Config) bool {
	switch cfg.LLM.Primary {
	case "ollama":
		return cfg.LLM.OllamaURL != ""
	case "openai":
		return cfg.LLM.OpenAIKey != ""
	default:
		return cfg.LLM.GroqKey != ""
	}
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value string, envVars ...string) KeyStatus {
	status := KeyStatus{
		Name:  name,
		IsSet: value != "",
	}

	if value != "" {
		// Check if it came from env
		if firstEnv(envVars...) != "" {
			status.Source = KeySourceEnv
		} else {
			status.Source = KeySourceConfig
		}
		status.Masked = maskKey(value)
	} else {
		status.Source = KeySourceNone
	}

	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
