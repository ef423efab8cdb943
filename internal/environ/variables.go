// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package environ

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/samber/oops"

	"github.com/retrobridge/retrobridge/internal/retro"
)

// declLexer tokenizes a core option declaration such as
// "Sprite limit; enabled|disabled".
var declLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Semi", Pattern: `;`},
	{Name: "Pipe", Pattern: `\|`},
	{Name: "Text", Pattern: `[^;|]+`},
})

// declaration is the parsed form of a retro_variable value.
//
// Grammar: [ description ] ";" value { "|" value }
type declaration struct {
	Description string   `parser:"@Text? ';'"`
	Values      []string `parser:"@Text ( '|' @Text )*"`
}

var declParser = participle.MustBuild[declaration](participle.Lexer(declLexer))

// Variable is a core option declared through SET_VARIABLES.
type Variable struct {
	Key         string
	Description string
	Values      []string
	Value       string
}

// ParseDeclaration parses a core option declaration. The first value is the
// default.
func ParseDeclaration(key, decl string) (Variable, error) {
	d, err := declParser.ParseString(key, decl)
	if err != nil {
		return Variable{}, oops.In("environ").Code("BAD_VARIABLE").With("key", key).Wrapf(err, "parse option declaration")
	}

	v := Variable{
		Key:         key,
		Description: strings.TrimSpace(d.Description),
		Values:      make([]string, 0, len(d.Values)),
	}
	for _, raw := range d.Values {
		val := strings.TrimSpace(raw)
		if val == "" {
			return Variable{}, oops.In("environ").Code("BAD_VARIABLE").With("key", key).Errorf("option declares an empty value")
		}
		v.Values = append(v.Values, val)
	}
	v.Value = v.Values[0]
	return v, nil
}

// variableSet holds declared options in declaration order. Overrides set
// before a core declares an option are applied when it does.
type variableSet struct {
	order     []string
	vars      map[string]*variableEntry
	overrides map[string]string
	dirty     bool
	pinned    int
}

// variableEntry holds at most one pinned C copy of its value. The copy stays
// valid until the core asks for the option again after a change.
type variableEntry struct {
	Variable
	cvalue []byte
	stale  bool
	pinner runtime.Pinner
}

func newVariableSet(overrides map[string]string) *variableSet {
	s := &variableSet{
		vars:      make(map[string]*variableEntry),
		overrides: make(map[string]string, len(overrides)),
	}
	for k, v := range overrides {
		s.overrides[k] = v
	}
	return s
}

// declare replaces the current declarations.
func (s *variableSet) declare(vars []Variable) {
	s.release()
	s.order = s.order[:0]
	s.vars = make(map[string]*variableEntry, len(vars))
	for _, v := range vars {
		if o, ok := s.overrides[v.Key]; ok && slices.Contains(v.Values, o) {
			v.Value = o
		}
		s.order = append(s.order, v.Key)
		s.vars[v.Key] = &variableEntry{Variable: v}
	}
	s.dirty = false
}

func (s *variableSet) get(key string) (*variableEntry, bool) {
	e, ok := s.vars[key]
	return e, ok
}

func (s *variableSet) set(key, value string) error {
	e, ok := s.vars[key]
	if !ok {
		s.overrides[key] = value
		return nil
	}
	if !slices.Contains(e.Values, value) {
		return oops.In("environ").Code("BAD_VARIABLE").
			With("key", key).With("value", value).
			Hint(fmt.Sprintf("allowed values: %s", strings.Join(e.Values, ", "))).
			Errorf("value not allowed for option")
	}
	s.overrides[key] = value
	if e.Value != value {
		e.Value = value
		e.stale = true
		s.dirty = true
	}
	return nil
}

// cstring returns e's value as a pinned C string. After a change the next
// call builds a new buffer and unpins the previous one.
func (s *variableSet) cstring(e *variableEntry) ([]byte, error) {
	if e.cvalue != nil && !e.stale {
		return e.cvalue, nil
	}
	b, err := retro.CString(e.Value)
	if err != nil {
		return nil, err
	}
	s.unpin(e)
	e.pinner.Pin(&b[0])
	e.cvalue = b
	e.stale = false
	s.pinned++
	return b, nil
}

func (s *variableSet) unpin(e *variableEntry) {
	if e.cvalue == nil {
		return
	}
	e.pinner.Unpin()
	e.cvalue = nil
	s.pinned--
}

// release unpins every value buffer.
func (s *variableSet) release() {
	for _, e := range s.vars {
		s.unpin(e)
	}
}

func (s *variableSet) list() []Variable {
	out := make([]Variable, 0, len(s.order))
	for _, k := range s.order {
		v := s.vars[k].Variable
		v.Values = slices.Clone(v.Values)
		out = append(out, v)
	}
	return out
}
