package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/generation"
	"github.com/teranos/postpulse/logger"
	"github.com/teranos/postpulse/sym"
)

func (s *Server) pipeline(w http.ResponseWriter) *generation.Pipeline {
	if s.deps.Pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "Draft pipeline is not configured.")
	}
	return s.deps.Pipeline
}

func draftFromSingle(req *generation.SingleRequest) generation.DraftRequest {
	return generation.DraftRequest{
		AccountID:       req.AccountID,
		TypeID:          req.TypeID,
		Theme:           req.Theme,
		Keywords:        req.Keywords,
		IncludeHashtags: req.IncludeHashtags,
		AccountType:     req.AccountType,
		ForbiddenWords:  req.ForbiddenWords,
		Limits:          req.Limits,
	}
}

// parseSingle reads and validates a single-generate body, writing 400 on failure.
func parseSingle(w http.ResponseWriter, r *http.Request) (*generation.SingleRequest, bool) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Request body must be an object.")
		return nil, false
	}
	req, err := generation.ParseSingleRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return req, true
}

// HandleGenerateSingle generates one draft without storing it.
func (s *Server) HandleGenerateSingle(w http.ResponseWriter, r *http.Request) {
	p := s.pipeline(w)
	if p == nil {
		return
	}
	req, ok := parseSingle(w, r)
	if !ok {
		return
	}

	draft, err := p.Compose(r.Context(), draftFromSingle(req))
	if err != nil {
		s.writeFailure(w, r, err, "Failed to generate.")
		return
	}
	s.log.Infow(sym.IX+" Draft generated",
		logger.FieldAccountID, req.AccountID,
		"type_id", req.TypeID,
		"model", draft.Model,
		"rewritten", draft.Rewritten)
	writeJSON(w, http.StatusOK, draft)
}

// HandleGeneratePreview returns the prompts for a request without calling the model.
func (s *Server) HandleGeneratePreview(w http.ResponseWriter, r *http.Request) {
	p := s.pipeline(w)
	if p == nil {
		return
	}
	req, ok := parseSingle(w, r)
	if !ok {
		return
	}

	preview, err := p.Preview(r.Context(), draftFromSingle(req))
	if err != nil {
		s.writeFailure(w, r, err, "Failed to load knowledge.")
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

type andSaveRequest struct {
	AccountID   interface{} `json:"accountId"`
	TypeID      interface{} `json:"typeId"`
	Content     interface{} `json:"content"`
	ScheduledAt interface{} `json:"scheduledAt"`
}

// HandleGenerateAndSave composes a draft from supplied or stub content and
// stores it, scheduling a posting job when scheduledAt is given.
func (s *Server) HandleGenerateAndSave(w http.ResponseWriter, r *http.Request) {
	p := s.pipeline(w)
	if p == nil {
		return
	}

	var payload andSaveRequest
	if !decodeObject(r, &payload) {
		writeError(w, http.StatusBadRequest, "Invalid payload.")
		return
	}
	accountID, _ := payload.AccountID.(string)
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "accountId is required.")
		return
	}
	typeID, _ := payload.TypeID.(string)
	if typeID == "" {
		writeError(w, http.StatusBadRequest, "typeId is required.")
		return
	}
	var body string
	if payload.Content != nil {
		c, isString := payload.Content.(string)
		if !isString {
			writeError(w, http.StatusBadRequest, "content must be a string.")
			return
		}
		body = c
	}

	req := generation.DraftRequest{AccountID: accountID, TypeID: typeID, Content: body}
	if payload.ScheduledAt != nil {
		raw, isString := payload.ScheduledAt.(string)
		if !isString {
			writeError(w, http.StatusBadRequest, "scheduledAt must be a valid datetime string.")
			return
		}
		if raw != "" {
			at, valid := parseTime(raw)
			if !valid {
				writeError(w, http.StatusBadRequest, "scheduledAt must be a valid datetime string.")
				return
			}
			req.ScheduledAt = &at
		}
	}

	// stored drafts never call the model; an empty body gets the stub
	if strings.TrimSpace(req.Content) == "" {
		req.Content = generation.StubBody(typeID)
	}

	result, err := p.Save(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err, "Failed to save tweet.")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandlePostTypes lists the post-type catalog.
func (s *Server) HandlePostTypes(w http.ResponseWriter, r *http.Request) {
	p := s.pipeline(w)
	if p == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"types": p.PostTypes()})
}

func (s *Server) knowledge(w http.ResponseWriter) *generation.Knowledge {
	if s.deps.Pipeline == nil || s.deps.Pipeline.Knowledge() == nil {
		writeError(w, http.StatusServiceUnavailable, "Knowledge base is not configured.")
		return nil
	}
	return s.deps.Pipeline.Knowledge()
}

// HandleKnowledgeTypes lists the type documents in the knowledge base.
func (s *Server) HandleKnowledgeTypes(w http.ResponseWriter, r *http.Request) {
	k := s.knowledge(w)
	if k == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"types": k.ListTypes()})
}

// HandleKnowledgeType serves one type document as markdown.
func (s *Server) HandleKnowledgeType(w http.ResponseWriter, r *http.Request) {
	k := s.knowledge(w)
	if k == nil {
		return
	}
	s.writeMarkdown(w, r, k, "types/"+chi.URLParam(r, "typeId")+".md")
}

// HandleKnowledgeAlgorithm serves the platform guidance document.
func (s *Server) HandleKnowledgeAlgorithm(w http.ResponseWriter, r *http.Request) {
	k := s.knowledge(w)
	if k == nil {
		return
	}
	s.writeMarkdown(w, r, k, "general/x-algorithm.md")
}

func (s *Server) writeMarkdown(w http.ResponseWriter, r *http.Request, k *generation.Knowledge, rel string) {
	md, err := k.Read(rel)
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, generation.ErrInvalidKnowledgePath) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(md))
}
