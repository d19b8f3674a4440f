// Package category resolves textual category paths into category ids and
// maintains product assignments.
package category

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/catsync/catsync/internal/shared"
)

// GrammarConfig holds the path syntax delimiters.
type GrammarConfig struct {
	// PathDelimiter separates whole paths, e.g. ";;".
	PathDelimiter string
	// TreeDelimiter separates levels inside a path, e.g. ">>".
	TreeDelimiter string
}

// LevelSpec is one parsed path level.
type LevelSpec struct {
	Name string
	// TranslatedName is the store-scoped label from the Name::[Label]
	// suffix form. Name then carries the bracketed default-store name.
	TranslatedName string
	// Translated levels are matched against store-scoped names and are
	// never created.
	Translated bool
	Position   int
	// Flags apply when the level has to be created.
	IsActive      bool
	IsAnchor      bool
	IncludeInMenu bool
}

// PathSpec is one parsed category path.
type PathSpec struct {
	// ExplicitRoot selects a tree root by name instead of the store
	// group's default root.
	ExplicitRoot string
	Levels       []LevelSpec
}

// rootKeyPattern matches %RP:<storeID>% substitution keys.
var rootKeyPattern = regexp.MustCompile(`%RP:(\d+)%`)

// RootNamer returns the root category name of a store for %RP:n%
// substitution.
type RootNamer func(storeID int64) (string, error)

// ParsePaths parses the raw categories field into path specs. Root
// substitution keys are expanded before parsing so they behave like
// explicit bracketed roots.
func ParsePaths(raw string, cfg GrammarConfig, roots RootNamer) ([]PathSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var substErr error
	raw = rootKeyPattern.ReplaceAllStringFunc(raw, func(key string) string {
		id, err := strconv.ParseInt(rootKeyPattern.FindStringSubmatch(key)[1], 10, 64)
		if err != nil {
			substErr = fmt.Errorf("%w: root key %q", shared.ErrInput, key)
			return key
		}
		name, err := roots(id)
		if err != nil {
			substErr = fmt.Errorf("root key %q: %w", key, err)
			return key
		}
		return "[" + name + "]"
	})
	if substErr != nil {
		return nil, substErr
	}

	var specs []PathSpec
	for _, path := range strings.Split(raw, cfg.PathDelimiter) {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		spec, err := parsePath(path, cfg)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parsePath(path string, cfg GrammarConfig) (PathSpec, error) {
	var spec PathSpec
	levels := strings.Split(path, cfg.TreeDelimiter)
	for i, level := range levels {
		ls, err := parseLevel(level)
		if err != nil {
			return PathSpec{}, fmt.Errorf("path %q: %w", path, err)
		}
		if i == 0 && ls.Translated && len(levels) > 1 {
			spec.ExplicitRoot = ls.Name
			continue
		}
		spec.Levels = append(spec.Levels, ls)
	}
	if len(spec.Levels) == 0 {
		return PathSpec{}, fmt.Errorf("%w: path %q has no assignable level", shared.ErrInput, path)
	}
	return spec, nil
}

func parseLevel(level string) (LevelSpec, error) {
	ls := LevelSpec{IsActive: true, IsAnchor: true, IncludeInMenu: true}

	parts := strings.Split(level, "::")
	// A trailing [Label] names the default-store category; the first
	// part then holds the store-scoped label.
	if last := strings.TrimSpace(parts[len(parts)-1]); len(parts) > 1 && bracketed(last) {
		def := strings.TrimSpace(last[1 : len(last)-1])
		if def == "" {
			return LevelSpec{}, fmt.Errorf("%w: empty default name in level %q", shared.ErrInput, level)
		}
		ls.TranslatedName = strings.TrimSpace(parts[0])
		if ls.TranslatedName == "" {
			return LevelSpec{}, fmt.Errorf("%w: empty category level", shared.ErrInput)
		}
		parts = append([]string{def}, parts[1:len(parts)-1]...)
	}

	name := strings.TrimSpace(parts[0])
	if name == "" {
		return LevelSpec{}, fmt.Errorf("%w: empty category level", shared.ErrInput)
	}
	if bracketed(name) {
		ls.Translated = true
		name = strings.TrimSpace(name[1 : len(name)-1])
		if name == "" {
			return LevelSpec{}, fmt.Errorf("%w: empty translated category level", shared.ErrInput)
		}
	}
	ls.Name = name

	switch len(parts) {
	case 1:
	case 2:
		pos, err := levelInt(parts[1])
		if err != nil {
			return LevelSpec{}, err
		}
		ls.Position = pos
	case 5:
		flags := make([]int, 4)
		for i, p := range parts[1:] {
			v, err := levelInt(p)
			if err != nil {
				return LevelSpec{}, err
			}
			flags[i] = v
		}
		ls.IsActive = flags[0] != 0
		ls.IsAnchor = flags[1] != 0
		ls.IncludeInMenu = flags[2] != 0
		ls.Position = flags[3]
	default:
		return LevelSpec{}, fmt.Errorf("%w: level %q must carry one or four options", shared.ErrInput, level)
	}
	return ls, nil
}

func bracketed(s string) bool {
	return strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")
}

func levelInt(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: level option %q is not numeric", shared.ErrInput, s)
	}
	return v, nil
}
