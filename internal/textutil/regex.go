package textutil

import (
	"regexp"
	"sync"
	"unicode/utf8"
)

// DefaultRegexInputLimit bounds how much user content any pattern is run against.
const DefaultRegexInputLimit = 64 * 1024

type lazyRegexp struct {
	once sync.Once
	re   *regexp.Regexp
	err  error
}

var regexCache sync.Map // pattern source -> *lazyRegexp

// Regexp returns the compiled form of pattern, compiling it exactly once per
// process no matter how many goroutines ask concurrently.
func Regexp(pattern string) (*regexp.Regexp, error) {
	v, _ := regexCache.LoadOrStore(pattern, &lazyRegexp{})
	lr := v.(*lazyRegexp)
	lr.once.Do(func() {
		lr.re, lr.err = regexp.Compile(pattern)
	})
	return lr.re, lr.err
}

// MustRegexp is Regexp for patterns that are compile-time constants.
func MustRegexp(pattern string) *regexp.Regexp {
	re, err := Regexp(pattern)
	if err != nil {
		panic("textutil: bad pattern " + pattern + ": " + err.Error())
	}
	return re
}

// Bound truncates content to at most limit bytes for pattern matching,
// backing off to a rune boundary. limit <= 0 selects DefaultRegexInputLimit.
// Structural parsers must always receive the full content instead.
func Bound(content string, limit int) string {
	if limit <= 0 {
		limit = DefaultRegexInputLimit
	}
	if len(content) <= limit {
		return content
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}
