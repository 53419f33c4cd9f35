package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Validator is implemented by every typed reasoning output. Validate runs at
// the boundary, before the value is trusted, and may normalize fields.
type Validator interface {
	Validate() error
}

const completionAttempts = 2

// CompleteJSON runs one schema-bound completion and decodes it into a fresh T.
// Any boundary failure (transport, malformed JSON, validation) is retried once
// with the same input; the second failure comes back as a *ReasoningError.
// Each attempt decodes into a new value so a half-decoded first attempt can
// never leak into the result.
func CompleteJSON[T any, PT interface {
	*T
	Validator
}](ctx context.Context, svc ReasoningService, req CompletionRequest) (*T, error) {
	var lastErr error
	for attempt := 1; attempt <= completionAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := svc.Complete(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}

		out := PT(new(T))
		if err := json.Unmarshal(raw, out); err != nil {
			lastErr = fmt.Errorf("malformed %s output: %w", req.Schema.Name, err)
			continue
		}
		if err := out.Validate(); err != nil {
			lastErr = fmt.Errorf("invalid %s output: %w", req.Schema.Name, err)
			continue
		}
		return (*T)(out), nil
	}
	return nil, &ReasoningError{Op: req.Schema.Name, Attempts: completionAttempts, Err: lastErr}
}
