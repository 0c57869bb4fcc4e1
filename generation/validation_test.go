package generation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		limits  Limits
		want    []string
	}{
		{
			name:    "passes",
			content: "A short post.",
			want:    nil,
		},
		{
			name:    "length counts characters not bytes",
			content: strings.Repeat("あ", 280),
			want:    nil,
		},
		{
			name:    "too long",
			content: strings.Repeat("a", 281),
			want:    []string{"Content exceeds 280 characters."},
		},
		{
			name:    "custom max length",
			content: "hello world",
			limits:  Limits{MaxLength: 5},
			want:    []string{"Content exceeds 5 characters."},
		},
		{
			name:    "surrounding whitespace is not counted",
			content: "  hello  ",
			limits:  Limits{MaxLength: 5},
			want:    nil,
		},
		{
			name:    "forbidden words are case-insensitive and whole-word",
			content: "This is NOT a Scam, promise. Concatenate.",
			limits:  Limits{ForbiddenWords: []string{"scam", "cat", "  ", "free"}},
			want:    []string{"Contains forbidden words: scam."},
		},
		{
			name:    "several forbidden words listed in input order",
			content: "free money, no scam",
			limits:  Limits{ForbiddenWords: []string{"scam", "free"}},
			want:    []string{"Contains forbidden words: scam, free."},
		},
		{
			name:    "links",
			content: "see http://a.example and HTTPS://b.example",
			limits:  Limits{MaxLinks: intp(1)},
			want:    []string{"Too many links (max 1)."},
		},
		{
			name:    "links unchecked without a cap",
			content: "http://a.example http://b.example http://c.example",
			want:    nil,
		},
		{
			name:    "hashtags",
			content: "#one #two #three",
			limits:  Limits{MaxHashtags: intp(2)},
			want:    []string{"Too many hashtags (max 2)."},
		},
		{
			name:    "line breaks",
			content: "one\ntwo\nthree",
			limits:  Limits{MaxNewlines: intp(1)},
			want:    []string{"Too many line breaks (max 1)."},
		},
		{
			name:    "zero caps",
			content: "http://a.example #tag\nnext",
			limits:  Limits{MaxLinks: intp(0), MaxHashtags: intp(0), MaxNewlines: intp(0)},
			want: []string{
				"Too many links (max 0).",
				"Too many hashtags (max 0).",
				"Too many line breaks (max 0).",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.content, tt.limits))
		})
	}
}

func TestRewrite_FixesEveryViolation(t *testing.T) {
	limits := Limits{
		ForbiddenWords: []string{"scam"},
		MaxLinks:       intp(1),
		MaxHashtags:    intp(2),
		MaxNewlines:    intp(1),
	}
	in := "Check this SCAM deal http://a.com http://b.com #one #two #three\nline2\nline3"
	require.Len(t, Validate(in, limits), 4)

	out := Rewrite(in, limits)

	assert.Equal(t, "Check this deal http://a.com  #one #two\nline2", out)
	assert.Empty(t, Validate(out, limits))
}

func TestRewrite_FixesEachViolationAlone(t *testing.T) {
	tests := []struct {
		name    string
		content string
		limits  Limits
		want    string
	}{
		{
			name:    "forbidden word",
			content: "A real SCAM of a deal",
			limits:  Limits{ForbiddenWords: []string{"scam"}},
			want:    "A real of a deal",
		},
		{
			name:    "links",
			content: "read https://a.example/x and https://b.example/y",
			limits:  Limits{MaxLinks: intp(1)},
			want:    "read https://a.example/x and",
		},
		{
			name:    "hashtags",
			content: "morning #one #two #three",
			limits:  Limits{MaxHashtags: intp(1)},
			want:    "morning #one",
		},
		{
			name:    "line breaks",
			content: "one\ntwo\nthree",
			limits:  Limits{MaxNewlines: intp(1)},
			want:    "one\ntwo",
		},
		{
			name:    "length",
			content: strings.Repeat("word ", 20),
			limits:  Limits{MaxLength: 20},
			want:    "word word word wo...",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotEmpty(t, Validate(tt.content, tt.limits))

			out := Rewrite(tt.content, tt.limits)
			assert.Equal(t, tt.want, out)
			assert.Empty(t, Validate(out, tt.limits))
		})
	}
}

func TestRewrite_TruncatesWithEllipsis(t *testing.T) {
	out := Rewrite(strings.Repeat("x", 300), Limits{})

	assert.Equal(t, 280, len([]rune(out)))
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Empty(t, Validate(out, Limits{}))

	jp := Rewrite(strings.Repeat("あ", 281), Limits{})
	assert.Equal(t, strings.Repeat("あ", 277)+"...", jp)
}

func TestRewrite_TrimsBeforeEllipsis(t *testing.T) {
	out := Rewrite("abcd    efgh", Limits{MaxLength: 8})
	assert.Equal(t, "abcd...", out)
}

func TestRewrite_CleansWhitespaceAroundBreaks(t *testing.T) {
	out := Rewrite("first   \n   second", Limits{})
	assert.Equal(t, "first\nsecond", out)
}

func TestRewrite_CanStillFail(t *testing.T) {
	t.Run("limit below the ellipsis", func(t *testing.T) {
		limits := Limits{MaxLength: 2}
		out := Rewrite("hello", limits)
		assert.Equal(t, []string{"Content exceeds 2 characters."}, Validate(out, limits))
	})

	t.Run("removal forms a forbidden phrase", func(t *testing.T) {
		limits := Limits{ForbiddenWords: []string{"a b", "x"}}
		out := Rewrite("a x b", limits)
		assert.Equal(t, "a b", out)
		assert.Equal(t, []string{"Contains forbidden words: a b."}, Validate(out, limits))
	})
}

func TestApplyAccountTypeRules(t *testing.T) {
	in := RuleInput{Body: "body", ForbiddenWords: []string{"x"}}

	tests := []struct {
		accountType AccountType
		applied     []string
	}{
		{AccountTypeAdult, []string{"adult:placeholder"}},
		{AccountTypeInfoProduct, []string{"info_product:placeholder"}},
		{"creator", []string{}},
		{"", []string{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.accountType), func(t *testing.T) {
			r := ApplyAccountTypeRules(tt.accountType, in)
			assert.Equal(t, "body", r.Body)
			assert.Equal(t, tt.applied, r.AppliedRules)
			assert.Empty(t, r.Warnings)
			assert.Empty(t, r.Requirements)
		})
	}
}
