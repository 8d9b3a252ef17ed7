package mocks

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/godilite/insighter/pkg/oracle"
)

// MockOracle is a function-field implementation of the Oracle interface.
type MockOracle struct {
	CompleteFunc func(ctx context.Context, req oracle.Request) (string, error)

	mu    sync.Mutex
	calls []oracle.Request
}

func (m *MockOracle) Complete(ctx context.Context, req oracle.Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "", errors.New("CompleteFunc not implemented")
}

// Calls returns the requests seen so far.
func (m *MockOracle) Calls() []oracle.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]oracle.Request(nil), m.calls...)
}

// CallsContaining counts requests whose prompt contains substr.
func (m *MockOracle) CallsContaining(substr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for _, c := range m.calls {
		if strings.Contains(c.Prompt, substr) {
			n++
		}
	}
	return n
}
