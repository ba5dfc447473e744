package hooks

import (
	"fmt"
	"regexp"
	"strings"
)

// maxBraceDepth bounds brace-expansion nesting (spec.md §4.8: "bounded to
// 10 levels of nesting") so a pathological pattern like `{a,{b,{c,...}}}`
// can't blow up compilation.
const maxBraceDepth = 10

// compiledPattern is a `!`-negatable set of glob alternatives (brace
// expansion turns one pattern into several literal alternatives, each
// compiled to its own anchored regexp).
type compiledPattern struct {
	negate bool
	alts   []*regexp.Regexp
}

// boundToPrefix reports whether pattern can only ever match paths inside
// the dot-path subtree rooted at prefix — its leading dot-segments, up
// to prefix's own length, are literal and identical to prefix's. A
// pattern like "math.*" is bound to "math" this way (it can't reach
// outside it); "**" or "*.Add" are not, since they can also match paths
// that removing "math" shouldn't touch. Used by removeApi to detach only
// the hooks that are genuinely scoped to a removed subtree (spec.md
// §4.9), leaving broader, cross-cutting hooks registered.
func boundToPrefix(pattern, prefix string) bool {
	if prefix == "" {
		return false
	}
	p := strings.TrimPrefix(pattern, "!")
	pSegs := strings.Split(p, ".")
	prefixSegs := strings.Split(prefix, ".")
	if len(pSegs) < len(prefixSegs) {
		return false
	}
	for i, seg := range prefixSegs {
		if pSegs[i] != seg {
			return false
		}
	}
	return true
}

func (cp *compiledPattern) match(path string) bool {
	matched := false
	for _, re := range cp.alts {
		if re.MatchString(path) {
			matched = true
			break
		}
	}
	if cp.negate {
		return !matched
	}
	return matched
}

// compilePattern parses one hook pattern: an optional leading `!`
// negation, then a brace-expandable glob over dot-joined path segments.
func compilePattern(pattern string) (*compiledPattern, error) {
	negate := false
	p := pattern
	if strings.HasPrefix(p, "!") {
		negate = true
		p = p[1:]
	}

	variants, err := expandBraces(p, 0)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}

	alts := make([]*regexp.Regexp, len(variants))
	for i, v := range variants {
		re, err := regexp.Compile("^" + globToRegex(v) + "$")
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		alts[i] = re
	}
	return &compiledPattern{negate: negate, alts: alts}, nil
}

// expandBraces recursively expands the first (outermost) `{a,b,...}`
// group in pattern into one pattern per comma-separated alternative,
// repeating for any further groups left in each expansion. depth counts
// levels of nesting already consumed.
func expandBraces(pattern string, depth int) ([]string, error) {
	start := strings.IndexByte(pattern, '{')
	if start == -1 {
		return []string{pattern}, nil
	}
	if depth >= maxBraceDepth {
		return nil, fmt.Errorf("brace nesting exceeds %d levels", maxBraceDepth)
	}

	level := 0
	end := -1
	for i := start; i < len(pattern); i++ {
		switch pattern[i] {
		case '{':
			level++
		case '}':
			level--
			if level == 0 {
				end = i
			}
		}
		if end != -1 {
			break
		}
	}
	if end == -1 {
		// Unbalanced brace: treat literally rather than erroring, since
		// spec.md doesn't specify malformed-pattern behavior here.
		return []string{pattern}, nil
	}

	prefix, inner, suffix := pattern[:start], pattern[start+1:end], pattern[end+1:]
	parts := splitTopLevelCommas(inner)

	var out []string
	for _, part := range parts {
		expanded, err := expandBraces(prefix+part+suffix, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

func splitTopLevelCommas(s string) []string {
	var parts []string
	level := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			level++
		case '}':
			level--
		case ',':
			if level == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// regexSpecial is the set of regexp metacharacters globToRegex must
// escape when they appear literally in a pattern. Braces are included:
// expandBraces consumes every balanced brace group, but an unbalanced
// brace is left in place and must match literally.
const regexSpecial = `\^$|+()[]{}`

// globToRegex translates one glob alternative into an (unanchored)
// regexp body: `**` matches any sequence including dot separators, `*`
// matches within one dot-separated segment, `?` matches one non-dot
// rune, and literal dots are escaped so they don't mean "any character".
func globToRegex(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^.]*")
			}
		case '?':
			b.WriteString("[^.]")
		case '.':
			b.WriteString(`\.`)
		default:
			if strings.IndexByte(regexSpecial, c) >= 0 {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}
