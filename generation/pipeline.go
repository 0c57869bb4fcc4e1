// Package generation composes post drafts: a body is supplied or generated,
// passed through the account type's rules, validated against length, word,
// link, hashtag and line limits, and rewritten at most once before being
// rejected. Saved drafts become content items and, when scheduled, pending
// posting jobs.
package generation

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/postpulse/content"
	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/logger"
	"github.com/teranos/postpulse/pulse/posting"
)

// Accounts is the content repository the pipeline reads and writes.
type Accounts interface {
	GetAccount(ctx context.Context, id string) (*content.Account, error)
	GetPersonaByAccount(ctx context.Context, accountID string) (*content.Persona, error)
	CreateItem(ctx context.Context, item *content.Item) error
}

// JobCreator enqueues posting jobs for scheduled drafts.
type JobCreator interface {
	CreateJob(ctx context.Context, job *posting.Job) error
}

// DraftRequest describes one draft. An empty Content asks for a generated
// body. AccountType and ForbiddenWords override the account and persona on
// record when set.
type DraftRequest struct {
	AccountID       string
	TypeID          string
	Content         string
	Theme           string
	Keywords        []string
	IncludeHashtags bool
	ScheduledAt     *time.Time

	AccountType    *AccountType
	ForbiddenWords []string
	Limits         *Limits
}

// Draft is a body that passed validation.
type Draft struct {
	Body             string     `json:"content"`
	TypeID           string     `json:"typeId"`
	Generated        bool       `json:"generated"`
	Rewritten        bool       `json:"rewritten"`
	Model            string     `json:"model,omitempty"`
	PromptTokens     int        `json:"promptTokens,omitempty"`
	CompletionTokens int        `json:"completionTokens,omitempty"`
	Rules            RuleResult `json:"rules"`
}

// SaveResult identifies what Save wrote.
type SaveResult struct {
	ContentID string         `json:"tweetId"`
	JobID     string         `json:"jobId,omitempty"`
	Status    content.Status `json:"status"`
	Body      string         `json:"content"`
}

// Preview is the prompt material for a post type, without a model call.
type Preview struct {
	SystemPrompt string           `json:"systemPrompt"`
	UserPrompt   string           `json:"userPrompt"`
	Knowledge    PreviewKnowledge `json:"knowledge"`
	Meta         PreviewMeta      `json:"meta"`
}

// PreviewKnowledge holds the markdown the prompts were built from.
type PreviewKnowledge struct {
	TypeMarkdown      string `json:"typeMarkdown"`
	AlgorithmMarkdown string `json:"algorithmMarkdown"`
}

// PreviewMeta echoes the request.
type PreviewMeta struct {
	TypeID   string   `json:"typeId"`
	Theme    *string  `json:"theme"`
	Keywords []string `json:"keywords"`
}

// Pipeline composes and saves drafts.
type Pipeline struct {
	accounts  Accounts
	jobs      JobCreator
	knowledge *Knowledge
	generator Generator
	maxLength int
	log       *zap.SugaredLogger
}

// NewPipeline wires a pipeline. A nil generator produces stub bodies; a nil
// knowledge base limits post types to the built-in catalog and disables
// Preview.
func NewPipeline(accounts Accounts, jobs JobCreator, knowledge *Knowledge, generator Generator, log *zap.SugaredLogger) *Pipeline {
	if log == nil {
		log = logger.ComponentLogger("generation")
	}
	return &Pipeline{
		accounts:  accounts,
		jobs:      jobs,
		knowledge: knowledge,
		generator: generator,
		maxLength: DefaultMaxLength,
		log:       log,
	}
}

// SetMaxLength changes the default length limit.
func (p *Pipeline) SetMaxLength(n int) {
	if n > 0 {
		p.maxLength = n
	}
}

// PostTypes lists the catalog.
func (p *Pipeline) PostTypes() []PostType {
	if p.knowledge == nil {
		return append([]PostType(nil), builtinPostTypes...)
	}
	return p.knowledge.PostTypes()
}

// Knowledge returns the knowledge base, which may be nil.
func (p *Pipeline) Knowledge() *Knowledge {
	return p.knowledge
}

func (p *Pipeline) postType(id string) (PostType, error) {
	if p.knowledge != nil {
		if pt, ok := p.knowledge.PostType(id); ok {
			return pt, nil
		}
	} else {
		for _, pt := range builtinPostTypes {
			if pt.ID == id {
				return pt, nil
			}
		}
	}
	return PostType{}, errors.Mark(errors.WithDetailf(ErrUnknownPostType, "typeId: %s", id), errors.ErrInvalidRequest)
}

// Compose builds and validates a draft without storing it.
func (p *Pipeline) Compose(ctx context.Context, req DraftRequest) (*Draft, error) {
	if strings.TrimSpace(req.AccountID) == "" {
		return nil, errors.NewInvalidRequestError("accountId is required.")
	}
	if strings.TrimSpace(req.TypeID) == "" {
		return nil, errors.NewInvalidRequestError("typeId is required.")
	}

	accountType, forbidden, err := p.accountRules(ctx, req)
	if err != nil {
		return nil, err
	}

	draft := &Draft{TypeID: req.TypeID}
	body := strings.TrimSpace(req.Content)
	if body == "" {
		gen, err := p.generate(ctx, req)
		if err != nil {
			return nil, err
		}
		body = gen.Content
		draft.Generated = true
		draft.Model = gen.Model
		draft.PromptTokens = gen.PromptTokens
		draft.CompletionTokens = gen.CompletionTokens
	}

	draft.Rules = ApplyAccountTypeRules(accountType, RuleInput{ForbiddenWords: forbidden, Body: body})
	body = strings.TrimSpace(draft.Rules.Body)
	if body == "" {
		return nil, ErrEmptyDraft
	}

	limits := Limits{}
	if req.Limits != nil {
		limits = *req.Limits
	}
	if limits.MaxLength <= 0 {
		limits.MaxLength = p.maxLength
	}
	limits.ForbiddenWords = forbidden

	if reasons := Validate(body, limits); len(reasons) > 0 {
		rewritten := strings.TrimSpace(Rewrite(body, limits))
		if rewritten == "" {
			p.log.Infow("Draft empty after rewrite",
				logger.FieldAccountID, req.AccountID,
				"type_id", req.TypeID,
				"reasons", reasons)
			return nil, &ValidationError{Reasons: append(reasons, reasonEmptyAfterRewrite)}
		}
		if remaining := Validate(rewritten, limits); len(remaining) > 0 {
			p.log.Infow("Draft rejected after rewrite",
				logger.FieldAccountID, req.AccountID,
				"type_id", req.TypeID,
				"reasons", remaining)
			return nil, &ValidationError{Reasons: remaining}
		}
		p.log.Debugw("Draft rewritten to fit limits",
			logger.FieldAccountID, req.AccountID,
			"type_id", req.TypeID,
			"reasons", reasons)
		body = rewritten
		draft.Rewritten = true
	}

	draft.Body = body
	draft.Rules.Body = body
	return draft, nil
}

// Save composes a draft and stores it as a content item: scheduled with a
// pending posting job when ScheduledAt is set, otherwise a plain draft.
func (p *Pipeline) Save(ctx context.Context, req DraftRequest) (*SaveResult, error) {
	if req.ScheduledAt != nil && p.jobs == nil {
		return nil, errors.Mark(errors.New("posting jobs are not configured"), errors.ErrServiceUnavailable)
	}

	draft, err := p.Compose(ctx, req)
	if err != nil {
		return nil, err
	}

	item := &content.Item{
		AccountID:   req.AccountID,
		Body:        draft.Body,
		Category:    req.TypeID,
		ScheduledAt: req.ScheduledAt,
	}
	if err := p.accounts.CreateItem(ctx, item); err != nil {
		return nil, errors.Wrap(err, "failed to save content item")
	}

	result := &SaveResult{ContentID: item.ID, Status: item.Status, Body: item.Body}
	if req.ScheduledAt == nil {
		return result, nil
	}

	job := &posting.Job{ContentID: item.ID, AccountID: req.AccountID, RunAt: *req.ScheduledAt}
	if err := p.jobs.CreateJob(ctx, job); err != nil {
		return nil, errors.WithDetailf(errors.Wrap(err, "failed to create posting job"), "Content ID: %s", item.ID)
	}
	result.JobID = job.ID

	p.log.Infow("Draft scheduled",
		logger.FieldContentID, item.ID,
		logger.FieldJobID, job.ID,
		logger.FieldRunAt, job.RunAt)
	return result, nil
}

// Preview returns the prompts a generated draft would be written from.
func (p *Pipeline) Preview(ctx context.Context, req DraftRequest) (*Preview, error) {
	if p.knowledge == nil {
		return nil, errors.Mark(errors.New("knowledge base is not configured"), errors.ErrServiceUnavailable)
	}
	pt, err := p.postType(req.TypeID)
	if err != nil {
		return nil, err
	}
	typeMD, algoMD, err := p.loadKnowledge(req.TypeID)
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		SystemPrompt: BuildSystemPrompt(pt, algoMD),
		UserPrompt:   BuildUserPrompt(req.Theme, req.Keywords, req.IncludeHashtags, typeMD),
		Knowledge:    PreviewKnowledge{TypeMarkdown: typeMD, AlgorithmMarkdown: algoMD},
		Meta:         PreviewMeta{TypeID: req.TypeID, Keywords: req.Keywords},
	}
	if req.Theme != "" {
		theme := req.Theme
		preview.Meta.Theme = &theme
	}
	if preview.Meta.Keywords == nil {
		preview.Meta.Keywords = []string{}
	}
	return preview, nil
}

func (p *Pipeline) accountRules(ctx context.Context, req DraftRequest) (AccountType, []string, error) {
	var accountType AccountType
	if req.AccountType != nil {
		accountType = *req.AccountType
	} else {
		account, err := p.accounts.GetAccount(ctx, req.AccountID)
		if errors.IsNotFoundError(err) {
			return "", nil, errors.NewNotFoundError("Account not found.")
		}
		if err != nil {
			return "", nil, errors.Wrap(err, "failed to load account")
		}
		accountType = AccountType(account.AccountType)
	}

	if req.ForbiddenWords != nil {
		return accountType, req.ForbiddenWords, nil
	}
	persona, err := p.accounts.GetPersonaByAccount(ctx, req.AccountID)
	if errors.IsNotFoundError(err) {
		return "", nil, errors.NewNotFoundError("Persona not found.")
	}
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to load persona")
	}
	return accountType, persona.ForbiddenWords, nil
}

func (p *Pipeline) generate(ctx context.Context, req DraftRequest) (*Generated, error) {
	if p.generator == nil {
		return &Generated{Content: StubBody(req.TypeID), Model: "stub"}, nil
	}

	pt, err := p.postType(req.TypeID)
	if err != nil {
		return nil, err
	}
	prompt := Prompt{PostType: pt}
	if p.knowledge != nil {
		typeMD, algoMD, err := p.loadKnowledge(req.TypeID)
		if err != nil {
			return nil, err
		}
		prompt.SystemPrompt = BuildSystemPrompt(pt, algoMD)
		prompt.UserPrompt = BuildUserPrompt(req.Theme, req.Keywords, req.IncludeHashtags, typeMD)
	} else {
		prompt.SystemPrompt = BuildSystemPrompt(pt, "")
		prompt.UserPrompt = BuildUserPrompt(req.Theme, req.Keywords, req.IncludeHashtags, "")
	}

	gen, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	gen.Content = strings.TrimSpace(gen.Content)
	return gen, nil
}

func (p *Pipeline) loadKnowledge(typeID string) (string, string, error) {
	typeMD, err := p.knowledge.TypeMarkdown(typeID)
	if err != nil {
		return "", "", err
	}
	algoMD, err := p.knowledge.AlgorithmMarkdown()
	if err != nil {
		return "", "", err
	}
	return typeMD, algoMD, nil
}
