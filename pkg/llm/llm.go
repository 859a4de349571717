// Package llm defines the integration contract with a large language
// model and a few providers. The model's output is always treated as
// untrusted; nothing in this package validates anything.
package llm

import "context"

// Integration produces a completion for a prompt. Implementations may be
// adversarial or broken; their errors surface to the caller unchanged.
type Integration interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
