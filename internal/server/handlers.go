package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/modelgate/internal/approval"
	"github.com/codefionn/modelgate/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, response, cause string) {
	writeJSON(w, status, map[string]interface{}{
		"status_code": status,
		"response":    response,
		"cause":       cause,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type approvalRequest struct {
	Approved bool `json:"approved"`
}

func (s *Server) handleApproval(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	id := params.ByName("id")

	var req approvalRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	status := s.deps.Gate.Resolve(id, req.Approved)
	switch status {
	case approval.ResolveApplied:
		writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
	case approval.ResolveNotFound:
		writeJSON(w, http.StatusNotFound, map[string]string{"status": string(status)})
	case approval.ResolveAlreadyResolved:
		writeJSON(w, http.StatusConflict, map[string]string{"status": string(status)})
	}
}

func (s *Server) conversationKey(r *http.Request, params httprouter.Params) store.Key {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "default"
	}
	return store.Key{UserID: userID, ConversationID: params.ByName("id")}
}

func (s *Server) handleConversationGet(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	key := s.conversationKey(r, params)

	entries, err := s.deps.Store.Get(r.Context(), key)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Unable to load conversation", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversation_id": key.ConversationID,
		"entries":         entries,
	})
}

func (s *Server) handleConversationDelete(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	key := s.conversationKey(r, params)

	if err := s.deps.Store.Delete(r.Context(), key); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Unable to delete conversation", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
