package ai

import "context"

// Request is a single model invocation. Model may be empty, in which case the
// provider falls back to its configured default.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
}

// SearchResult carries model output plus the URLs the model cited while
// answering with web search enabled.
type SearchResult struct {
	Text    string
	Sources []string
}

// TextGenerator generates text from a system prompt and user prompt.
// Every hosted-LLM provider implements this interface.
type TextGenerator interface {
	GenerateText(ctx context.Context, req Request) (string, error)
}

// SearchTextGenerator generates text with web search enabled, returning
// cited sources alongside the answer.
type SearchTextGenerator interface {
	GenerateWithSearch(ctx context.Context, req Request) (SearchResult, error)
}
