package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	return enc
}

// EstimateTokens counts cl100k_base tokens in text. When the encoding is
// unavailable it falls back to one token per four bytes.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	if e := encoding(); e != nil {
		return len(e.Encode(text, nil, nil))
	}
	return roughTokens(text)
}

func roughTokens(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

// EstimateRequestTokens sums EstimateTokens over the system prompt and every
// message.
func EstimateRequestTokens(req Request) int {
	total := EstimateTokens(req.SystemPrompt)
	for _, m := range req.Messages {
		total += EstimateTokens(m.Content)
	}
	return total
}
