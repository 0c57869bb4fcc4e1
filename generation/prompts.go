package generation

import (
	"strings"
)

// BuildSystemPrompt frames the model with platform guidance and the post
// type it is writing.
func BuildSystemPrompt(pt PostType, algorithmMarkdown string) string {
	return joinSections(
		"You are a tweet-generation assistant for X (Twitter).",
		"Follow the platform guidance below.",
		strings.TrimSpace(algorithmMarkdown),
		"Post type: "+pt.Name,
		"Purpose: "+pt.Purpose,
		"Structure hint: "+pt.StructureHint,
		"Tips: "+pt.Tips,
	)
}

// BuildUserPrompt asks for one draft on the given theme.
func BuildUserPrompt(theme string, keywords []string, includeHashtags bool, typeMarkdown string) string {
	themeLine := "Theme: (not specified)"
	if strings.TrimSpace(theme) != "" {
		themeLine = "Theme: " + theme
	}
	keywordLine := "Keywords: (none)"
	if len(keywords) > 0 {
		keywordLine = "Keywords: " + strings.Join(keywords, ", ")
	}
	hashtags := "no"
	if includeHashtags {
		hashtags = "yes"
	}

	return joinSections(
		"Generate a single tweet draft.",
		themeLine,
		keywordLine,
		"Include hashtags: "+hashtags,
		"Type knowledge:",
		strings.TrimSpace(typeMarkdown),
	)
}

// joinSections separates non-empty sections with a blank line.
func joinSections(sections ...string) string {
	kept := sections[:0]
	for _, s := range sections {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "\n\n")
}
