package llmservice

import (
	"context"
	"strings"
	"sync"
)

// ScriptedCompleter answers prompts from a fixed script. A prompt containing
// a rule's Match key gets that rule's reply or error; rules are checked in
// order. It records every prompt it receives and is safe for concurrent use.
type ScriptedCompleter struct {
	Rules []Rule

	mu      sync.Mutex
	prompts []string
}

type Rule struct {
	Match string
	Reply string
	Err   error
}

func (s *ScriptedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, r := range s.Rules {
		if strings.Contains(prompt, r.Match) {
			return r.Reply, r.Err
		}
	}
	return "", nil
}

// Prompts returns the prompts received so far.
func (s *ScriptedCompleter) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Count returns how many received prompts contain substr.
func (s *ScriptedCompleter) Count(substr string) int {
	n := 0
	for _, p := range s.Prompts() {
		if strings.Contains(p, substr) {
			n++
		}
	}
	return n
}
