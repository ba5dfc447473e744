package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_AlreadyLegalNoRules(t *testing.T) {
	assert.Equal(t, "math", Sanitize("math", Options{}))
}

func TestSanitize_EmptyAndNumeric(t *testing.T) {
	assert.Equal(t, "_", Sanitize("", Options{}))
	assert.NotPanics(t, func() { Sanitize("123", Options{}) })
	got := Sanitize("123", Options{})
	assert.Regexp(t, `^[A-Za-z_$][A-Za-z0-9_$]*$`, got)
}

func TestSanitize_CamelCaseJoin(t *testing.T) {
	assert.Equal(t, "myModuleName", Sanitize("my-module-name", Options{}))
	assert.Equal(t, "myModuleName", Sanitize("my-module name", Options{LowerFirst: true}))
}

func TestSanitize_LowerFirstOption(t *testing.T) {
	// LowerFirst only ever lowercases; it never uppercases an
	// already-lowercase first character (spec.md §4.1 step 5).
	assert.Equal(t, "FooBar", Sanitize("Foo-bar", Options{}))
	assert.Equal(t, "fooBar", Sanitize("Foo-bar", Options{LowerFirst: true}))
}

func TestSanitize_LeadingDigitsStripped(t *testing.T) {
	// A first segment that is purely leading digits empties out and
	// becomes "_" (spec.md §4.1 step 3), it is not dropped entirely.
	assert.Equal(t, "_AutoFlatten", Sanitize("123-auto-flatten", Options{LowerFirst: true}))
	assert.Equal(t, "v2Router", Sanitize("v2-router", Options{LowerFirst: true}))
}

func TestSanitize_LeaveRulePreservesExactCase(t *testing.T) {
	opts := Options{Rules: []Rule{{Kind: RuleLeave, Match: "IP"}}}
	assert.Equal(t, "IP", Sanitize("IP", opts))
}

func TestSanitize_UpperRuleWholeSegment(t *testing.T) {
	opts := Options{Rules: []Rule{{Kind: RuleUpper, Match: "ip"}}}
	assert.Equal(t, "IP", Sanitize("ip", opts))
}

func TestSanitize_BoundaryPatternOnlyMidSegment(t *testing.T) {
	opts := Options{Rules: []Rule{{Kind: RuleUpper, Match: "**ip**"}}}
	// "ip" at the very start of the (single) segment is not a boundary
	// match: nothing precedes it within the segment.
	assert.Equal(t, "ipaddress", Sanitize("ipaddress", opts))
	// "ip" preceded and followed by other characters within the same
	// segment is uppercased in place.
	assert.Equal(t, "autoIPaddress", Sanitize("autoipaddress", opts))
}

func TestSanitize_PreserveAllUpper(t *testing.T) {
	opts := Options{PreserveAllUpper: true}
	assert.Equal(t, "HTTPServer", Sanitize("HTTP-server", opts))
}

func TestSanitize_RulePrecedence_LeaveBeatsUpper(t *testing.T) {
	opts := Options{Rules: []Rule{
		{Kind: RuleUpper, Match: "Ip"},
		{Kind: RuleLeave, Match: "Ip"},
	}}
	assert.Equal(t, "Ip", Sanitize("Ip", opts))
}

func TestUppercaseRunCount(t *testing.T) {
	assert.Equal(t, 1, UppercaseRunCount("autoIp"))
	assert.Equal(t, 1, UppercaseRunCount("autoIPThing"))
	assert.Equal(t, 0, UppercaseRunCount("auto"))
}
