// Package content persists the accounts, personas and content items that
// posting jobs deliver.
package content

import "time"

// Status is the lifecycle state of a content item.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPosted    Status = "posted"
	StatusFailed    Status = "failed"
)

// Item is a post body bound to an account.
// PostedAt is set exactly when Status is posted.
type Item struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"account_id"`
	Body        string     `json:"content"`
	Category    string     `json:"category,omitempty"` // post type id
	Status      Status     `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	ExternalID  string     `json:"external_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Posted reports whether the item has already been delivered.
func (i *Item) Posted() bool {
	return i.Status == StatusPosted
}

// Account is a platform identity content is posted as.
type Account struct {
	ID             string    `json:"id"`
	Handle         string    `json:"username"`
	PlatformUserID string    `json:"platform_user_id,omitempty"`
	DisplayName    string    `json:"display_name,omitempty"`
	AccountType    string    `json:"account_type,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DefaultAccountStatus is applied when an account is created without one.
const DefaultAccountStatus = "active"

// Persona carries per-account writing constraints.
type Persona struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"account_id"`
	Name           string    `json:"name"`
	ForbiddenWords []string  `json:"forbidden_words"`
	CreatedAt      time.Time `json:"created_at"`
}
