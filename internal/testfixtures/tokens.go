package testfixtures

import (
	"fmt"
	"sync"
)

// TokenSequence hands out predictable session tokens: token-01, token-02, ...
type TokenSequence struct {
	mu      sync.Mutex
	prefix  string
	counter int
}

func NewTokenSequence(prefix string) *TokenSequence {
	if prefix == "" {
		prefix = "token"
	}
	return &TokenSequence{prefix: prefix}
}

// Next satisfies application.TokenGenerator.
func (s *TokenSequence) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	return fmt.Sprintf("%s-%02d", s.prefix, s.counter), nil
}

// Issued reports how many tokens were handed out.
func (s *TokenSequence) Issued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}
