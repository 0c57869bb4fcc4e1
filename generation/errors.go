package generation

import (
	"strings"

	"github.com/teranos/postpulse/errors"
)

// Sentinels stay distinct; return sites add the ErrInvalidRequest mark
// where the caller is at fault.
var (
	// ErrEmptyDraft means nothing was left after account-type rules ran.
	ErrEmptyDraft = errors.New("Content is empty after rules.")

	// ErrUnknownPostType means the type id is not in the catalog.
	ErrUnknownPostType = errors.New("Unknown typeId.")

	// ErrInvalidKnowledgePath means a knowledge path escaped the knowledge directory.
	ErrInvalidKnowledgePath = errors.New("Invalid knowledge path")
)

// reasonEmptyAfterRewrite is reported when the rewrite pass removed everything.
const reasonEmptyAfterRewrite = "Content is empty after rewrite."

// ValidationError reports a draft that still breaks its limits after the
// rewrite pass.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "Validation failed: " + strings.Join(e.Reasons, " ")
}
