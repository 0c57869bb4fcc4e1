package generation

import (
	"encoding/json"
	"strings"

	"github.com/teranos/postpulse/errors"
)

// SingleRequest asks for one generated draft.
type SingleRequest struct {
	AccountID       string   `json:"accountId"`
	TypeID          string   `json:"typeId"`
	Theme           string   `json:"theme,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	IncludeHashtags bool     `json:"includeHashtags"`

	// Optional overrides; when absent the account and persona on record apply.
	AccountType    *AccountType `json:"accountType,omitempty"`
	ForbiddenWords []string     `json:"forbiddenWords,omitempty"`
	Limits         *Limits      `json:"validation,omitempty"`
}

func invalid(msg string) error {
	return errors.NewInvalidRequestError("%s", msg)
}

func decodeObject(payload []byte) (map[string]interface{}, error) {
	var record map[string]interface{}
	if err := json.Unmarshal(payload, &record); err != nil || record == nil {
		return nil, invalid("Request body must be an object.")
	}
	return record, nil
}

func nonEmptyString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok && strings.TrimSpace(s) != ""
}

// ParseSingleRequest validates a JSON single-generate request. Errors are
// marked invalid-request and carry the message shown to the caller.
func ParseSingleRequest(payload []byte) (*SingleRequest, error) {
	record, err := decodeObject(payload)
	if err != nil {
		return nil, err
	}

	req := &SingleRequest{}
	var ok bool
	if req.AccountID, ok = nonEmptyString(record["accountId"]); !ok {
		return nil, invalid("accountId is required.")
	}
	if req.TypeID, ok = nonEmptyString(record["typeId"]); !ok {
		return nil, invalid("typeId is required.")
	}
	if theme, ok := nonEmptyString(record["theme"]); ok {
		req.Theme = strings.TrimSpace(theme)
	}

	if raw, present := record["keywords"]; present {
		list, ok := raw.([]interface{})
		if !ok {
			return nil, invalid("keywords must be an array of strings.")
		}
		req.Keywords = make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, invalid("keywords must be an array of strings.")
			}
			req.Keywords = append(req.Keywords, s)
		}
	}

	if raw, present := record["includeHashtags"]; present {
		b, ok := raw.(bool)
		if !ok {
			return nil, invalid("includeHashtags must be a boolean.")
		}
		req.IncludeHashtags = b
	}

	// the override fields are typed; a second decode picks them up
	var overrides struct {
		AccountType    *AccountType `json:"accountType"`
		ForbiddenWords []string     `json:"forbiddenWords"`
		Limits         *Limits      `json:"validation"`
	}
	if err := json.Unmarshal(payload, &overrides); err != nil {
		return nil, invalid("accountType, forbiddenWords and validation must be well-formed.")
	}
	req.AccountType = overrides.AccountType
	req.ForbiddenWords = overrides.ForbiddenWords
	req.Limits = overrides.Limits

	return req, nil
}
