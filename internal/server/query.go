package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/modelgate/internal/approval"
	"github.com/codefionn/modelgate/internal/budget"
	"github.com/codefionn/modelgate/internal/config"
	"github.com/codefionn/modelgate/internal/history"
	"github.com/codefionn/modelgate/internal/llm"
	"github.com/codefionn/modelgate/internal/orchestrator"
	"github.com/codefionn/modelgate/internal/protocol"
	"github.com/codefionn/modelgate/internal/rag"
	"github.com/codefionn/modelgate/internal/store"
)

// QueryRequest is the body of both query endpoints.
type QueryRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	MediaType      string `json:"media_type,omitempty"` // "json" (default) or "text"
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
}

// QueryResponse is the non-streaming response body.
type QueryResponse struct {
	ConversationID      string                   `json:"conversation_id"`
	Response            string                   `json:"response"`
	ReferencedDocuments []rag.ReferencedDocument `json:"referenced_documents"`
	Truncated           bool                     `json:"truncated"`
	InputTokens         int                      `json:"input_tokens"`
	OutputTokens        int                      `json:"output_tokens"`
	AvailableQuotas     map[string]int64         `json:"available_quotas"`
}

type preparedRequest struct {
	key       store.Key
	messages  []*llm.Message
	truncated bool
	docs      []rag.ReferencedDocument
	client    llm.Client
	cfg       *config.Config
}

func (s *Server) decodeQuery(r *http.Request) (*QueryRequest, error) {
	var req QueryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		return nil, err
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}
	if req.UserID == "" {
		req.UserID = "default"
	}
	if req.MediaType == "" {
		req.MediaType = "json"
	}
	return &req, nil
}

// prepare resolves the client, retrieves knowledge and history, and builds
// the bounded message list. A non-nil ErrorPayload is ready to send.
func (s *Server) prepare(r *http.Request, req *QueryRequest) (*preparedRequest, *protocol.ErrorPayload) {
	ctx := r.Context()
	cfg := s.config()

	client := s.deps.Client
	if req.Provider != "" || req.Model != "" {
		providerCfg := cfg.Provider
		if req.Provider != "" {
			providerCfg.Provider = req.Provider
		}
		if req.Model != "" {
			providerCfg.Model = req.Model
		}
		override, err := llm.NewClient(providerCfg.Provider, providerCfg.ResolveAPIKey(), providerCfg.Model)
		if err != nil {
			return nil, &protocol.ErrorPayload{
				StatusCode: http.StatusUnprocessableEntity,
				Response:   "Unable to process this request",
				Cause:      err.Error(),
			}
		}
		client = override
	}

	chunks, err := s.deps.Retriever.Retrieve(ctx, req.Query)
	if err != nil {
		// Retrieval is best effort; answer without reference material.
		s.log.Warn("knowledge retrieval failed: %v", err)
		chunks = nil
	}
	contextBlock := rag.ContextBlock(chunks)

	promptTokens := s.deps.Counter.Count(req.Query) + s.deps.Counter.Count(contextBlock)
	available, err := budget.CalculateAvailable(promptTokens, cfg.Provider.ContextWindow, cfg.Provider.ReservedResponseTokens)
	if err != nil {
		return nil, &protocol.ErrorPayload{
			StatusCode: http.StatusRequestEntityTooLarge,
			Response:   "Prompt is too long",
			Cause:      err.Error(),
		}
	}

	key := store.Key{UserID: req.UserID, ConversationID: req.ConversationID}
	entries, err := s.deps.History.Retrieve(ctx, key)
	if err != nil {
		return nil, &protocol.ErrorPayload{
			StatusCode: http.StatusInternalServerError,
			Response:   "Unable to load conversation history",
			Cause:      err.Error(),
		}
	}

	prepared, truncated := s.deps.History.Prepare(ctx, key, entries, available)

	var messages []*llm.Message
	if contextBlock != "" {
		messages = append(messages, &llm.Message{Role: "system", Content: contextBlock})
	}
	messages = append(messages, history.ToMessages(prepared)...)
	messages = append(messages, &llm.Message{Role: "user", Content: req.Query})

	return &preparedRequest{
		key:       key,
		messages:  messages,
		truncated: truncated,
		docs:      rag.CollectReferencedDocuments(chunks),
		client:    client,
		cfg:       cfg,
	}, nil
}

func (s *Server) orchestratorOptions(cfg *config.Config, streaming bool) orchestrator.Options {
	mode, ok := approval.ParseMode(cfg.Orchestrator.ApprovalMode)
	if !ok {
		mode = approval.ModeAlways
	}
	return orchestrator.Options{
		MaxRounds:         cfg.Orchestrator.MaxRounds,
		PerRoundTimeout:   time.Duration(cfg.Orchestrator.PerRoundTimeoutSeconds) * time.Second,
		ToolsEnabled:      cfg.Orchestrator.ToolsEnabled,
		Streaming:         streaming,
		ApprovalMode:      mode,
		ApprovalTimeout:   time.Duration(cfg.Orchestrator.ApprovalTimeoutSeconds) * time.Second,
		MaxResponseTokens: cfg.Provider.ReservedResponseTokens,
	}
}

// finish persists the answered turn and assembles the end payload.
func (s *Server) finish(r *http.Request, req *QueryRequest, prep *preparedRequest, result *orchestrator.Result) *protocol.EndPayload {
	ctx := r.Context()

	entry := store.NewEntry(req.Query, result.Response, prep.client.ProviderName(), prep.client.ModelName())
	if err := s.deps.Store.Append(ctx, prep.key, entry); err != nil {
		s.log.Error("failed to persist turn for %s/%s: %v", prep.key.UserID, prep.key.ConversationID, err)
	}

	quotas, err := s.deps.Quota.Remaining(ctx, req.UserID)
	if err != nil {
		s.log.Warn("quota lookup failed: %v", err)
		quotas = map[string]int64{}
	}

	docs := prep.docs
	if docs == nil {
		docs = []rag.ReferencedDocument{}
	}

	return &protocol.EndPayload{
		ReferencedDocuments: docs,
		Truncated:           prep.truncated,
		InputTokens:         result.Counter.InputTokens,
		OutputTokens:        result.Counter.OutputTokens,
		AvailableQuotas:     quotas,
	}
}

func (s *Server) handleStreamingQuery(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, err := s.decodeQuery(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Query == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing required field", "query must not be empty")
		return
	}

	var enc protocol.Encoder
	switch req.MediaType {
	case "json":
		enc = protocol.NewSSEEncoder(w)
	case "text":
		enc = protocol.NewTextEncoder(w)
	default:
		writeJSONError(w, http.StatusBadRequest, "Unsupported media type", req.MediaType)
		return
	}

	w.Header().Set("Content-Type", enc.ContentType())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Conversation-ID", req.ConversationID)

	emit := func(chunk protocol.Chunk) error { return enc.Encode(chunk) }
	_ = emit(protocol.StartChunk(req.ConversationID))

	prep, errPayload := s.prepare(r, req)
	if errPayload != nil {
		_ = emit(protocol.ErrorChunk(errPayload))
		return
	}

	orch := s.deps.Orchestrator
	if prep.client != s.deps.Client {
		orch = orch.WithClient(prep.client)
	}

	result, err := orch.Run(r.Context(), prep.messages, emit, s.orchestratorOptions(prep.cfg, true))
	if err != nil {
		_ = emit(protocol.ErrorChunk(protocol.ErrorPayloadFrom(llm.ClassifyError(err))))
		return
	}

	_ = emit(protocol.EndChunk(s.finish(r, req, prep, result)))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, err := s.decodeQuery(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Query == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing required field", "query must not be empty")
		return
	}

	prep, errPayload := s.prepare(r, req)
	if errPayload != nil {
		writeJSONError(w, errPayload.StatusCode, errPayload.Response, errPayload.Cause)
		return
	}

	orch := s.deps.Orchestrator
	if prep.client != s.deps.Client {
		orch = orch.WithClient(prep.client)
	}

	// Chunks are not delivered incrementally in this mode.
	discard := func(chunk protocol.Chunk) error { return nil }

	result, err := orch.Run(r.Context(), prep.messages, discard, s.orchestratorOptions(prep.cfg, false))
	if err != nil {
		classified := llm.ClassifyError(err)
		writeJSONError(w, classified.StatusCode, classified.Response, classified.Cause)
		return
	}

	end := s.finish(r, req, prep, result)
	writeJSON(w, http.StatusOK, QueryResponse{
		ConversationID:      req.ConversationID,
		Response:            result.Response,
		ReferencedDocuments: end.ReferencedDocuments,
		Truncated:           end.Truncated,
		InputTokens:         end.InputTokens,
		OutputTokens:        end.OutputTokens,
		AvailableQuotas:     end.AvailableQuotas,
	})
}
