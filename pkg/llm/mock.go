package llm

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// Echo returns its input unchanged. Useful in tests where the "prompt" is
// already the SQL to be parsed and validated.
type Echo struct{}

// Complete implements Integration.
func (Echo) Complete(_ context.Context, prompt string) (string, error) {
	return prompt, nil
}

// Lookup returns canned responses keyed by the hash of the prompt.
type Lookup struct {
	Responses map[string]string
}

// Complete implements Integration.
func (l *Lookup) Complete(_ context.Context, prompt string) (string, error) {
	sum := md5.Sum([]byte(prompt))
	key := hex.EncodeToString(sum[:])
	resp, ok := l.Responses[key]
	if !ok {
		return "", fmt.Errorf("llm: no canned response for prompt hash %s", key)
	}
	return resp, nil
}
