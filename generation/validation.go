package generation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxLength is the platform post limit in characters.
const DefaultMaxLength = 280

// Limits are the constraints a draft is validated against. Nil pointers
// disable the optional checks.
type Limits struct {
	MaxLength      int      `json:"maxLength,omitempty"` // 0 = DefaultMaxLength
	ForbiddenWords []string `json:"forbiddenWords,omitempty"`
	MaxLinks       *int     `json:"maxLinks,omitempty"`
	MaxHashtags    *int     `json:"maxHashtags,omitempty"`
	MaxNewlines    *int     `json:"maxNewlines,omitempty"`
}

func (l Limits) maxLength() int {
	if l.MaxLength <= 0 {
		return DefaultMaxLength
	}
	return l.MaxLength
}

// words drops blank entries.
func (l Limits) words() []string {
	out := make([]string, 0, len(l.ForbiddenWords))
	for _, w := range l.ForbiddenWords {
		if strings.TrimSpace(w) != "" {
			out = append(out, w)
		}
	}
	return out
}

var (
	linkPattern      = regexp.MustCompile(`(?i)https?://\S+`)
	hashtagPattern   = regexp.MustCompile(`#\w+`)
	repeatedSpace    = regexp.MustCompile(`\s{2,}`)
	spaceBeforeBreak = regexp.MustCompile(`\s+\n`)
	spaceAfterBreak  = regexp.MustCompile(`\n\s+`)
)

func wordPattern(word string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(strings.ToLower(word)) + `\b`)
}

// Validate checks content against limits and returns every violated
// reason, in a fixed order. An empty result means the content passes.
func Validate(content string, limits Limits) []string {
	var reasons []string
	trimmed := strings.TrimSpace(content)

	max := limits.maxLength()
	if utf8.RuneCountInString(trimmed) > max {
		reasons = append(reasons, fmt.Sprintf("Content exceeds %d characters.", max))
	}

	if words := limits.words(); len(words) > 0 {
		lowered := strings.ToLower(trimmed)
		var hits []string
		for _, w := range words {
			if wordPattern(w).MatchString(lowered) {
				hits = append(hits, w)
			}
		}
		if len(hits) > 0 {
			reasons = append(reasons, fmt.Sprintf("Contains forbidden words: %s.", strings.Join(hits, ", ")))
		}
	}

	if limits.MaxLinks != nil && len(linkPattern.FindAllString(trimmed, -1)) > *limits.MaxLinks {
		reasons = append(reasons, fmt.Sprintf("Too many links (max %d).", *limits.MaxLinks))
	}

	if limits.MaxHashtags != nil && len(hashtagPattern.FindAllString(trimmed, -1)) > *limits.MaxHashtags {
		reasons = append(reasons, fmt.Sprintf("Too many hashtags (max %d).", *limits.MaxHashtags))
	}

	if limits.MaxNewlines != nil && strings.Count(trimmed, "\n") > *limits.MaxNewlines {
		reasons = append(reasons, fmt.Sprintf("Too many line breaks (max %d).", *limits.MaxNewlines))
	}

	return reasons
}

// Rewrite makes one pass at bringing content within limits: forbidden
// words are removed, links and hashtags past their caps are dropped, lines
// past the newline cap are cut, and the result is truncated to the maximum
// length with a trailing "...".
func Rewrite(content string, limits Limits) string {
	out := content

	for _, w := range limits.words() {
		out = wordPattern(w).ReplaceAllString(out, "")
		out = repeatedSpace.ReplaceAllString(out, " ")
	}

	if limits.MaxLinks != nil {
		out = keepFirst(linkPattern, out, *limits.MaxLinks)
	}
	if limits.MaxHashtags != nil {
		out = keepFirst(hashtagPattern, out, *limits.MaxHashtags)
	}

	if limits.MaxNewlines != nil {
		lines := strings.Split(out, "\n")
		if keep := *limits.MaxNewlines + 1; len(lines) > keep {
			lines = lines[:keep]
		}
		out = strings.Join(lines, "\n")
	}

	out = spaceBeforeBreak.ReplaceAllString(out, "\n")
	out = spaceAfterBreak.ReplaceAllString(out, "\n")
	return truncate(strings.TrimSpace(out), limits.maxLength())
}

func keepFirst(re *regexp.Regexp, s string, n int) string {
	seen := 0
	return re.ReplaceAllStringFunc(s, func(m string) string {
		seen++
		if seen > n {
			return ""
		}
		return m
	})
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	cut := max - 3
	if cut < 0 {
		cut = 0
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:cut]), " \t\r\n") + "..."
}
