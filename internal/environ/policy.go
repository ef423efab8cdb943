// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package environ

import (
	"fmt"
	"sync"

	"github.com/gobwas/glob"
)

// compiledRule holds a pattern and its compiled glob.
type compiledRule struct {
	pattern string
	glob    glob.Glob
}

// Policy decides which environment commands the host answers.
//
// Patterns match lower-case command names with '_' as the segment
// separator:
//   - '*' matches a single segment: "get_*_directory" matches "get_save_directory"
//   - '**' matches across segments: "get_**" matches "get_core_assets_directory"
//
// Policy is safe for concurrent use. The zero value denies everything.
type Policy struct {
	rules []compiledRule
	mu    sync.RWMutex
}

// NewPolicy compiles patterns. An empty list allows every command.
func NewPolicy(patterns []string) (*Policy, error) {
	p := &Policy{}
	if len(patterns) == 0 {
		patterns = []string{"**"}
	}
	if err := p.SetRules(patterns); err != nil {
		return nil, err
	}
	return p, nil
}

// SetRules replaces the rules. On error the previous rules stay in effect.
func (p *Policy) SetRules(patterns []string) error {
	compiled := make([]compiledRule, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" {
			return fmt.Errorf("rule %d: empty pattern", i)
		}
		g, err := glob.Compile(pattern, '_')
		if err != nil {
			return fmt.Errorf("rule %d (%q): %w", i, pattern, err)
		}
		compiled[i] = compiledRule{pattern: pattern, glob: g}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules = compiled
	return nil
}

// Rules returns a copy of the configured patterns.
func (p *Policy) Rules() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.rules))
	for i, r := range p.rules {
		out[i] = r.pattern
	}
	return out
}

// Allowed reports whether the named command may be answered. Unknown
// (empty) names are never allowed.
func (p *Policy) Allowed(name string) bool {
	if name == "" {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, r := range p.rules {
		if r.glob.Match(name) {
			return true
		}
	}
	return false
}
