package middleware

import (
	"context"
	"fmt"
	"maps"
	"regexp"

	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
)

// Mask replaces the values of masked globals.
const Mask = "***"

type piiMiddleware struct {
	next     ports.StateStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks the globals whose names match a pattern.
// Only the stored copy is masked; the live debugger state is left untouched.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.StateStore) ports.StateStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, record *domain.SessionRecord) error {
	if record.State == nil || len(record.State.GlobalEnv) == 0 {
		return m.next.Save(ctx, sessionID, record)
	}

	state := *record.State
	state.GlobalEnv = maps.Clone(record.State.GlobalEnv)
	m.mask(state.GlobalEnv)

	cloned := *record
	cloned.State = &state
	return m.next.Save(ctx, sessionID, &cloned)
}

func (m *piiMiddleware) mask(env map[string]string) {
	for k := range env {
		for _, p := range m.patterns {
			if p.MatchString(k) {
				env[k] = Mask
				break
			}
		}
	}
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
