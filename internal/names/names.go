// Package names generates human-readable two-word instance names.
package names

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/firefly-engineering/ink/internal/config"
	"github.com/firefly-engineering/ink/internal/errors"
	"github.com/firefly-engineering/ink/internal/system"
)

// Generator samples one word from each of two word lists. The lists are read
// on every call so that edits take effect without a restart.
type Generator struct {
	fs         system.FileSystem
	firstPath  string
	secondPath string
	intn       func(n int) int
}

// Option configures a Generator.
type Option func(*Generator)

// WithFS sets the filesystem the word lists are read from.
func WithFS(fs system.FileSystem) Option {
	return func(g *Generator) { g.fs = fs }
}

// WithRand sets the source of randomness; intn must return a value in [0, n).
func WithRand(intn func(n int) int) Option {
	return func(g *Generator) { g.intn = intn }
}

// New creates a Generator reading the word lists at the given paths.
func New(firstPath, secondPath string, opts ...Option) *Generator {
	g := &Generator{
		fs:         system.DefaultFS(),
		firstPath:  firstPath,
		secondPath: secondPath,
		intn:       rand.IntN,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FromConfig creates a Generator for the word lists under cfg.ResourcesDir.
func FromConfig(cfg *config.Config, opts ...Option) (*Generator, error) {
	first, err := cfg.ResourcePath(config.FirstWordList)
	if err != nil {
		return nil, errors.ConfigurationError("invalid word list path", err)
	}
	second, err := cfg.ResourcePath(config.SecondWordList)
	if err != nil {
		return nil, errors.ConfigurationError("invalid word list path", err)
	}
	return New(first, second, opts...), nil
}

// Generate returns "<first>-<second>". Names are not checked for collisions.
func (g *Generator) Generate() (string, error) {
	first, err := g.pick(g.firstPath)
	if err != nil {
		return "", err
	}
	second, err := g.pick(g.secondPath)
	if err != nil {
		return "", err
	}
	return first + "-" + second, nil
}

func (g *Generator) pick(path string) (string, error) {
	words, err := g.load(path)
	if err != nil {
		return "", err
	}
	return words[g.intn(len(words))], nil
}

func (g *Generator) load(path string) ([]string, error) {
	data, err := g.fs.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigurationError(fmt.Sprintf("failed to read word list %s", path), err)
	}

	var words []string
	for _, line := range strings.Split(string(data), "\n") {
		// Hosts are case-insensitive and routed in lower case.
		if word := strings.ToLower(strings.TrimSpace(line)); word != "" {
			words = append(words, word)
		}
	}
	if len(words) == 0 {
		return nil, errors.ConfigurationError(fmt.Sprintf("word list %s is empty", path), nil)
	}

	return words, nil
}
