// Package paths expands path patterns such as /v1/items/{1-3,7} into the
// concrete paths they stand for.
package paths

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	valid "github.com/asaskevich/govalidator"
)

var (
	ErrInvalidOptions  = errors.New("invalid pattern options")
	ErrInvalidRange    = errors.New("not a valid number range")
	ErrRangeBoundCount = errors.New("invalid number range")
)

// Options sets the group delimiters. Both empty means { and }.
type Options struct {
	PatternPrefix string
	PatternSuffix string
}

// DefaultOptions uses curly braces: /items/{1,2}.
var DefaultOptions = Options{PatternPrefix: "{", PatternSuffix: "}"}

func (o Options) pattern() (*regexp.Regexp, error) {
	if o.PatternPrefix == "" && o.PatternSuffix == "" {
		o = DefaultOptions
	}
	if o.PatternPrefix == "" || o.PatternSuffix == "" {
		return nil, fmt.Errorf("%+v: prefix and suffix must both be set: %w", o, ErrInvalidOptions)
	}

	return regexp.Compile(regexp.QuoteMeta(o.PatternPrefix) + `([a-zA-Z0-9_.,-]+)` + regexp.QuoteMeta(o.PatternSuffix))
}

// Expand returns every path described by path. Each group holds
// comma-separated values and inclusive integer ranges (a-b); several groups
// multiply out left to right. A path without groups expands to itself.
func Expand(path string, opts Options) ([]string, error) {
	pattern, err := opts.pattern()
	if err != nil {
		return nil, err
	}

	return expand(path, pattern)
}

func expand(path string, pattern *regexp.Regexp) ([]string, error) {
	loc := pattern.FindStringSubmatchIndex(path)
	if loc == nil {
		return []string{path}, nil
	}

	head, group, rest := path[:loc[0]], path[loc[2]:loc[3]], path[loc[1]:]

	values, err := groupValues(group)
	if err != nil {
		return nil, err
	}

	tails, err := expand(rest, pattern)
	if err != nil {
		return nil, err
	}

	expanded := make([]string, 0, len(values)*len(tails))
	for _, value := range values {
		for _, tail := range tails {
			expanded = append(expanded, head+value+tail)
		}
	}

	return expanded, nil
}

func groupValues(group string) ([]string, error) {
	values := []string{}
	for _, part := range strings.Split(group, ",") {
		if !strings.Contains(part, "-") || valid.IsInt(part) {
			values = append(values, part)

			continue
		}

		first, last, err := rangeBounds(part)
		if err != nil {
			return nil, err
		}
		for i := first; i <= last; i++ {
			values = append(values, strconv.FormatInt(i, 10))
		}
	}

	return values, nil
}

// rangeBounds parses a-b where either bound may be negative: -3--1, -2-4.
func rangeBounds(part string) (int64, int64, error) {
	bounds := strings.Split(part, "-")
	if len(bounds) > 2 && bounds[0] == "" {
		bounds = append([]string{"-" + bounds[1]}, bounds[2:]...)
	}
	if len(bounds) > 2 && bounds[1] == "" {
		bounds = []string{bounds[0], "-" + bounds[2]}
	}

	if len(bounds) != 2 {
		return 0, 0, fmt.Errorf("%q: number of bounds != 2, is %d: %w", part, len(bounds), ErrRangeBoundCount)
	}
	if !valid.IsInt(bounds[0]) {
		return 0, 0, fmt.Errorf("%q: first number: %w", part, ErrInvalidRange)
	}
	if !valid.IsInt(bounds[1]) {
		return 0, 0, fmt.Errorf("%q: second number: %w", part, ErrInvalidRange)
	}

	first, err := strconv.ParseInt(bounds[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%q: %w", part, ErrInvalidRange)
	}
	last, err := strconv.ParseInt(bounds[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%q: %w", part, ErrInvalidRange)
	}
	if last < first {
		return 0, 0, fmt.Errorf("%q: first number cannot be bigger than second number: %w", part, ErrInvalidRange)
	}

	return first, last, nil
}
