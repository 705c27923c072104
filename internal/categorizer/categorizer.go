// Package categorizer maps free-text transaction descriptions to category
// labels using an ordered list of keyword rules.
//
// Matching is a case-insensitive substring test and the first rule, in
// declaration order, wins. Reordering rules changes results for descriptions
// that contain more than one keyword.
package categorizer

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fallback is returned when no rule matches.
const Fallback = "Other"

// ErrEmptyKeyword rejects a rule whose keyword is blank, since it would
// match every description.
var ErrEmptyKeyword = errors.New("empty keyword")

// Rule pairs a keyword with the category it assigns.
type Rule struct {
	Keyword  string `yaml:"keyword"`
	Category string `yaml:"category"`
}

// Categorizer holds an immutable rule list.
type Categorizer struct {
	rules   []Rule
	lowered []string
}

// DefaultRules returns the built-in rule list in its precedence order.
func DefaultRules() []Rule {
	return []Rule{
		{Keyword: "Starbucks", Category: "Coffee"},
		{Keyword: "McDonald", Category: "Fast Food"},
		{Keyword: "Uber", Category: "Transportation"},
		{Keyword: "Lyft", Category: "Transportation"},
		{Keyword: "Amazon", Category: "Shopping"},
		{Keyword: "Target", Category: "Shopping"},
		{Keyword: "Costco", Category: "Groceries"},
		{Keyword: "Walmart", Category: "Shopping"},
	}
}

// New creates a categorizer over a copy of rules.
func New(rules []Rule) *Categorizer {
	c := &Categorizer{
		rules:   append([]Rule(nil), rules...),
		lowered: make([]string, len(rules)),
	}
	for i, r := range rules {
		c.lowered[i] = strings.ToLower(r.Keyword)
	}
	return c
}

// Default returns a categorizer using DefaultRules.
func Default() *Categorizer {
	return New(DefaultRules())
}

// LoadFile reads an ordered YAML rule list:
//
//   - keyword: Starbucks
//     category: Coffee
func LoadFile(path string) (*Categorizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	for i, r := range rules {
		if strings.TrimSpace(r.Keyword) == "" {
			return nil, fmt.Errorf("rule %d: %w", i+1, ErrEmptyKeyword)
		}
		if strings.TrimSpace(r.Category) == "" {
			return nil, fmt.Errorf("rule %d (%s): empty category", i+1, r.Keyword)
		}
	}
	return New(rules), nil
}

// Categorize returns the category of the first rule whose keyword occurs in
// description, or Fallback.
func (c *Categorizer) Categorize(description string) string {
	desc := strings.ToLower(description)
	for i, kw := range c.lowered {
		if strings.Contains(desc, kw) {
			return c.rules[i].Category
		}
	}
	return Fallback
}

// Rules returns a copy of the rule list.
func (c *Categorizer) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}
