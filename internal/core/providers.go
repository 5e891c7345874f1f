package core

import "context"

type CompletionRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

type Completion struct {
	Content    string
	TokensUsed int
}

// ModelBackend performs a single completion attempt. The deadline is carried by ctx.
type ModelBackend interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

type TokenEstimator interface {
	CountTokens(text string) int
}
