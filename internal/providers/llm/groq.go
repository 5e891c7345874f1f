package llm

type Groq struct {
	*OpenAICompatible
}

func NewGroq(apiKey, model string) *Groq {
	return &Groq{
		OpenAICompatible: NewOpenAICompatible(OpenAICompatibleConfig{
			Name:       "groq",
			BaseURL:    "https://api.groq.com/openai",
			APIKey:     apiKey,
			Model:      model,
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
		}),
	}
}
