package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/postpulse/db"
	"github.com/teranos/postpulse/errors"
)

// Store persists accounts, personas and content items.
type Store struct {
	db      *sql.DB
	dialect db.Dialect
	now     func() time.Time
}

// NewStore creates a content store over an open connection.
func NewStore(conn *sql.DB, dialect db.Dialect) *Store {
	return &Store{
		db:      conn,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// CreateAccount inserts an account, filling ID, status and timestamps when unset.
func (s *Store) CreateAccount(ctx context.Context, a *Account) error {
	if a.Handle == "" {
		return errors.NewInvalidRequestError("username is required")
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = DefaultAccountStatus
	}
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now

	query := `
		INSERT INTO accounts (
			id, handle, platform_user_id, display_name,
			account_type, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(query),
		a.ID,
		a.Handle,
		db.NullString(a.PlatformUserID),
		db.NullString(a.DisplayName),
		db.NullString(a.AccountType),
		a.Status,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return errors.Mark(errors.Wrapf(err, "account %s already exists", a.Handle), errors.ErrConflict)
		}
		return errors.Wrap(err, "failed to create account")
	}
	return nil
}

// GetAccount returns the account or an error marked errors.ErrNotFound.
func (s *Store) GetAccount(ctx context.Context, id string) (*Account, error) {
	query := `
		SELECT id, handle, platform_user_id, display_name,
		       account_type, status, created_at, updated_at
		FROM accounts WHERE id = ?
	`
	var a Account
	var platformUserID, displayName, accountType sql.NullString
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(query), id).Scan(
		&a.ID, &a.Handle, &platformUserID, &displayName,
		&accountType, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("account not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account")
	}
	a.PlatformUserID = platformUserID.String
	a.DisplayName = displayName.String
	a.AccountType = accountType.String
	return &a, nil
}

// CreatePersona inserts the persona for an account. Each account has at most one.
func (s *Store) CreatePersona(ctx context.Context, p *Persona) error {
	if p.AccountID == "" {
		return errors.NewInvalidRequestError("persona account_id is required")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.ForbiddenWords == nil {
		p.ForbiddenWords = []string{}
	}
	words, err := json.Marshal(p.ForbiddenWords)
	if err != nil {
		return errors.Wrap(err, "failed to encode forbidden words")
	}
	p.CreatedAt = s.now()

	query := `
		INSERT INTO personas (id, account_id, name, forbidden_words, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, s.dialect.Rebind(query),
		p.ID, p.AccountID, p.Name, string(words), p.CreatedAt,
	); err != nil {
		if db.IsUniqueViolation(err) {
			return errors.Mark(errors.Wrapf(err, "persona for account %s already exists", p.AccountID), errors.ErrConflict)
		}
		return errors.Wrap(err, "failed to create persona")
	}
	return nil
}

// GetPersonaByAccount returns the account's persona or an error marked errors.ErrNotFound.
func (s *Store) GetPersonaByAccount(ctx context.Context, accountID string) (*Persona, error) {
	query := `
		SELECT id, account_id, name, forbidden_words, created_at
		FROM personas WHERE account_id = ?
	`
	var p Persona
	var words string
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(query), accountID).Scan(
		&p.ID, &p.AccountID, &p.Name, &words, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("persona not found for account %s", accountID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get persona")
	}
	if words != "" {
		if err := json.Unmarshal([]byte(words), &p.ForbiddenWords); err != nil {
			return nil, errors.Wrapf(err, "persona %s has malformed forbidden_words", p.ID)
		}
	}
	return &p, nil
}

// CreateItem inserts a content item. Status defaults to scheduled when
// ScheduledAt is set and draft otherwise.
func (s *Store) CreateItem(ctx context.Context, item *Item) error {
	if item.AccountID == "" || item.Body == "" {
		return errors.NewInvalidRequestError("account_id and content are required")
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Status == "" {
		item.Status = StatusDraft
		if item.ScheduledAt != nil {
			item.Status = StatusScheduled
		}
	}
	now := s.now()
	item.CreatedAt, item.UpdatedAt = now, now

	query := `
		INSERT INTO content_items (
			id, account_id, body, category, status,
			scheduled_at, posted_at, external_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(query),
		item.ID,
		item.AccountID,
		item.Body,
		db.NullString(item.Category),
		string(item.Status),
		db.NullTime(item.ScheduledAt),
		db.NullTime(item.PostedAt),
		db.NullString(item.ExternalID),
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create content item")
	}
	return nil
}

const itemColumns = `id, account_id, body, category, status,
		scheduled_at, posted_at, external_id, created_at, updated_at`

type itemScanArgs struct {
	category    sql.NullString
	externalID  sql.NullString
	scheduledAt sql.NullTime
	postedAt    sql.NullTime
}

func (a *itemScanArgs) targets(item *Item) []interface{} {
	return []interface{}{
		&item.ID, &item.AccountID, &item.Body, &a.category, &item.Status,
		&a.scheduledAt, &a.postedAt, &a.externalID, &item.CreatedAt, &item.UpdatedAt,
	}
}

func (a *itemScanArgs) apply(item *Item) {
	item.Category = a.category.String
	item.ExternalID = a.externalID.String
	item.ScheduledAt = db.TimePtr(a.scheduledAt)
	item.PostedAt = db.TimePtr(a.postedAt)
}

// GetItem returns the content item or an error marked errors.ErrNotFound.
func (s *Store) GetItem(ctx context.Context, id string) (*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM content_items WHERE id = ?`

	var item Item
	var args itemScanArgs
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(query), id).Scan(args.targets(&item)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("content item not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get content item")
	}
	args.apply(&item)
	return &item, nil
}

// MarkPosted moves an item to posted. It reports false when the item was
// already posted (or does not exist), leaving the first posted_at intact.
func (s *Store) MarkPosted(ctx context.Context, id string, postedAt time.Time, externalID string) (bool, error) {
	query := `
		UPDATE content_items
		SET status = ?, posted_at = ?, external_id = ?, updated_at = ?
		WHERE id = ? AND status <> ?
	`
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(query),
		string(StatusPosted),
		postedAt.UTC(),
		db.NullString(externalID),
		postedAt.UTC(),
		id,
		string(StatusPosted),
	)
	if err != nil {
		return false, errors.Wrapf(err, "failed to mark content item %s posted", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read affected rows")
	}
	return n == 1, nil
}

// ListPostedBetween returns posted items whose posted_at falls inside
// [start, end], oldest first.
func (s *Store) ListPostedBetween(ctx context.Context, start, end time.Time) ([]Item, error) {
	query := `SELECT ` + itemColumns + `
		FROM content_items
		WHERE status = ? AND posted_at >= ? AND posted_at <= ?
		ORDER BY posted_at ASC
	`
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), string(StatusPosted), start.UTC(), end.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "failed to query posted content items")
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		var args itemScanArgs
		if err := rows.Scan(args.targets(&item)...); err != nil {
			return nil, errors.Wrap(err, "failed to scan content item")
		}
		args.apply(&item)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating content items")
	}
	return items, nil
}
