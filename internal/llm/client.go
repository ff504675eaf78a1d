package llm

import "context"

// Client is the text-completion oracle capability. Implementations may be
// slow, unavailable, or ignore output-format instructions; callers must
// treat the returned text defensively.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
