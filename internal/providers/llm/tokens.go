package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tke     *tiktoken.Tiktoken
	tkeErr  error
	tkeOnce sync.Once
)

func getTokenizer() (*tiktoken.Tiktoken, error) {
	tkeOnce.Do(func() {
		tke, tkeErr = tiktoken.GetEncoding("cl100k_base")
	})
	return tke, tkeErr
}

// TiktokenEstimator counts tokens with the cl100k_base encoding.
// When the encoding cannot be loaded it falls back to roughly four bytes per token.
type TiktokenEstimator struct{}

func NewTokenEstimator() TiktokenEstimator {
	return TiktokenEstimator{}
}

func (TiktokenEstimator) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	enc, err := getTokenizer()
	if err != nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
