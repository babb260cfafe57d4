package category

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Misc is returned when no group matches
const Misc = "Misc"

// Group is a category label and the keywords that select it
type Group struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Config is the layout of a categories YAML file
type Config struct {
	Categories []Group `yaml:"categories"`
}

// DefaultGroups is the built-in keyword list, in match order
var DefaultGroups = []Group{
	{Name: "Groceries", Keywords: []string{
		"milk", "bread", "egg", "rice", "dal", "atta", "flour", "sugar", "salt", "oil",
		"butter", "cheese", "paneer", "curd", "yogurt", "vegetable", "veg", "fruit",
		"apple", "banana", "onion", "potato", "tomato", "tea", "coffee", "biscuit",
		"snack", "grocery", "grocer", "supermarket", "mart",
	}},
	{Name: "Clothing", Keywords: []string{
		"shirt", "t-shirt", "jeans", "trouser", "pant", "dress", "kurta", "saree",
		"jacket", "sweater", "sock", "shoe", "sneaker", "sandal", "cap", "scarf", "apparel",
	}},
	{Name: "Electronics", Keywords: []string{
		"phone", "mobile", "charger", "cable", "usb", "laptop", "computer", "keyboard",
		"mouse", "headphone", "earphone", "speaker", "battery", "tv", "television",
		"monitor", "adapter", "electronic",
	}},
	{Name: "Medical", Keywords: []string{
		"medicine", "tablet", "capsule", "syrup", "pharmacy", "chemist", "clinic",
		"doctor", "hospital", "bandage", "vitamin", "ointment", "medical", "health",
	}},
	{Name: "Transport", Keywords: []string{
		"bus", "train", "metro", "taxi", "cab", "uber", "ola", "auto", "rickshaw",
		"fuel", "petrol", "diesel", "parking", "toll", "ticket", "flight", "fare",
	}},
}

type matcher struct {
	name    string
	pattern *regexp.Regexp
}

// Guesser assigns a category to free-text item names. The first group with
// a matching keyword wins.
type Guesser struct {
	matchers []matcher
}

// NewGuesser compiles groups into a Guesser. Keywords match whole words,
// case-insensitively, with an optional trailing "s" or "es".
func NewGuesser(groups []Group) (*Guesser, error) {
	g := &Guesser{}
	for _, group := range groups {
		name := strings.TrimSpace(group.Name)
		if name == "" {
			return nil, fmt.Errorf("category group without a name")
		}
		if len(group.Keywords) == 0 {
			continue
		}
		quoted := make([]string, 0, len(group.Keywords))
		for _, kw := range group.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(kw)))
		}
		if len(quoted) == 0 {
			continue
		}
		re, err := regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)(?:e?s)?\b`)
		if err != nil {
			return nil, fmt.Errorf("compiling keywords for %s: %w", name, err)
		}
		g.matchers = append(g.matchers, matcher{name: name, pattern: re})
	}
	return g, nil
}

// DefaultGuesser returns a Guesser built from DefaultGroups
func DefaultGuesser() *Guesser {
	g, err := NewGuesser(DefaultGroups)
	if err != nil {
		panic(err)
	}
	return g
}

// Load reads keyword groups from a YAML file
func Load(path string) (*Guesser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading categories: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing categories: %w", err)
	}
	if len(cfg.Categories) == 0 {
		return nil, fmt.Errorf("no categories in %s", path)
	}
	return NewGuesser(cfg.Categories)
}

// Guess returns the first matching category for name, or Misc
func (g *Guesser) Guess(name string) string {
	for _, m := range g.matchers {
		if m.pattern.MatchString(name) {
			return m.name
		}
	}
	return Misc
}

// Names lists the categories in match order
func (g *Guesser) Names() []string {
	names := make([]string, 0, len(g.matchers)+1)
	for _, m := range g.matchers {
		names = append(names, m.name)
	}
	return append(names, Misc)
}
