package commands

import (
	"context"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/teranos/postpulse/content"
	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/internal/util"
	"github.com/teranos/postpulse/pulse/posting"
)

// seedFile is the layout of a `db seed` TOML file:
//
//	[[accounts]]
//	username = "morning_notes"
//	account_type = "adult"
//	forbidden_words = ["scam"]
//
//	  [[accounts.items]]
//	  content = "First light."
//	  type = "awareness"
//	  scheduled_at = 2026-05-01T09:00:00Z
type seedFile struct {
	Accounts []seedAccount `toml:"accounts"`
}

type seedAccount struct {
	Username       string     `toml:"username"`
	DisplayName    string     `toml:"display_name"`
	AccountType    string     `toml:"account_type"`
	Persona        string     `toml:"persona"`
	ForbiddenWords []string   `toml:"forbidden_words"`
	Items          []seedItem `toml:"items"`
}

type seedItem struct {
	Content     string     `toml:"content"`
	Type        string     `toml:"type"`
	ScheduledAt *time.Time `toml:"scheduled_at"`
}

type seedSummary struct {
	Accounts int
	Items    int
	Jobs     int
}

// loadSeed decodes path and rejects keys the layout does not know.
func loadSeed(path string) (*seedFile, error) {
	var f seedFile
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode seed file %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Newf("unknown keys in seed file %s: %v", path, undecoded)
	}
	return &f, nil
}

// seed inserts accounts, personas and items. Scheduled items get a pending
// posting job at their scheduled time.
func seed(ctx context.Context, cs *content.Store, js *posting.Store, f *seedFile) (seedSummary, error) {
	var sum seedSummary
	for _, sa := range f.Accounts {
		account := &content.Account{
			Handle:      sa.Username,
			DisplayName: sa.DisplayName,
			AccountType: sa.AccountType,
		}
		if err := cs.CreateAccount(ctx, account); err != nil {
			return sum, errors.Wrapf(err, "account %s", sa.Username)
		}
		sum.Accounts++

		name := sa.Persona
		if name == "" {
			name = sa.Username
		}
		persona := &content.Persona{AccountID: account.ID, Name: name, ForbiddenWords: sa.ForbiddenWords}
		if err := cs.CreatePersona(ctx, persona); err != nil {
			return sum, errors.Wrapf(err, "persona for %s", sa.Username)
		}

		for _, si := range sa.Items {
			item := &content.Item{
				AccountID:   account.ID,
				Body:        si.Content,
				Category:    si.Type,
				ScheduledAt: si.ScheduledAt,
			}
			if err := cs.CreateItem(ctx, item); err != nil {
				return sum, errors.Wrapf(err, "item for %s", sa.Username)
			}
			sum.Items++

			if si.ScheduledAt == nil {
				continue
			}
			job := &posting.Job{ContentID: item.ID, AccountID: account.ID, RunAt: *si.ScheduledAt}
			if err := js.CreateJob(ctx, job); err != nil {
				return sum, errors.Wrapf(err, "job for item %s", util.ShortID(item.ID))
			}
			sum.Jobs++
		}
	}
	return sum, nil
}
