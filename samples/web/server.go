// Copyright (c) Microsoft. All rights reserved.

package main

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	ak "github.com/agentplayground/agentkit/agentkit"
	"github.com/agentplayground/agentkit/catalog"
	"github.com/agentplayground/agentkit/runner"
)

//go:embed index.html
var indexHTML []byte

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	ChatID  string `json:"chatId,omitempty"`
	Profile string `json:"profile,omitempty"`
	Input   string `json:"input"`
}

// chatResponse is the JSON body returned from POST /api/chat.
type chatResponse struct {
	ChatID    string      `json:"chatId"`
	Profile   string      `json:"profile"`
	Answer    string      `json:"answer,omitempty"`
	HTML      string      `json:"html,omitempty"`
	State     ak.State    `json:"state,omitempty"`
	Rounds    int         `json:"rounds"`
	ToolCalls int         `json:"toolCalls"`
	Turns     []ak.Record `json:"turns"`
	Usage     usage       `json:"usage"`
	Error     string      `json:"error,omitempty"`
	ErrorKind string      `json:"errorKind,omitempty"`
}

type usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

type profileInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tools       []string `json:"tools"`
	Samples     []string `json:"samples"`
}

// chatServer is the HTTP handler for the browser chat.
type chatServer struct {
	runner   *runner.Runner
	provider string
	mux      *http.ServeMux
}

func newChatServer(r *runner.Runner, provider string) *chatServer {
	s := &chatServer{
		runner:   r,
		provider: provider,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/profiles", s.handleProfiles)
	s.mux.HandleFunc("GET /api/chats", s.handleChats)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/chats/{id}/transcript", s.handleTranscript)
	s.mux.HandleFunc("GET /api/chats/{id}/export", s.handleExport)
	s.mux.HandleFunc("POST /api/chats/{id}/reset", s.handleReset)
	return s
}

func (s *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Printf("[http] %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
	s.mux.ServeHTTP(w, r)
}

func (s *chatServer) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *chatServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "provider": s.provider})
}

func (s *chatServer) handleProfiles(w http.ResponseWriter, _ *http.Request) {
	var out []profileInfo
	for _, p := range catalog.All() {
		names, err := s.runner.Tools(p.ID)
		if err != nil {
			log.Printf("[chat] profile %s: %v", p.ID, err)
			continue
		}
		out = append(out, profileInfo{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Tools:       names,
			Samples:     p.Samples,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *chatServer) handleChats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Sessions())
}

func (s *chatServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[chat] bad request: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "input is required"})
		return
	}
	if _, err := catalog.Lookup(req.Profile); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	log.Printf("[chat] chat=%s profile=%s input=%q", req.ChatID, req.Profile, req.Input)
	reply, err := s.runner.Chat(r.Context(), req.ChatID, req.Profile, req.Input)
	if reply == nil {
		log.Printf("[chat] error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	out := chatResponse{
		ChatID:  reply.ChatID,
		Profile: reply.Profile,
		Turns:   []ak.Record{},
	}
	if res := reply.RoundResult; res != nil {
		out.Answer = res.Answer
		out.HTML = renderHTML(res.Answer)
		out.State = res.State
		out.Rounds = res.Rounds
		out.ToolCalls = res.ToolCalls
		out.Usage = usage{InputTokens: res.Usage.InputTokens, OutputTokens: res.Usage.OutputTokens}
		for _, t := range res.Turns {
			out.Turns = append(out.Turns, ak.NewRecord(t))
		}
	}

	status := http.StatusOK
	if err != nil {
		log.Printf("[chat] round error: %v", err)
		out.Error = err.Error()
		out.ErrorKind = errorKind(err)
		status = statusFor(err)
	}
	writeJSON(w, status, out)
}

func (s *chatServer) handleTranscript(w http.ResponseWriter, r *http.Request) {
	turns, err := s.runner.Transcript(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	records := make([]ak.Record, len(turns))
	for i, t := range turns {
		records[i] = ak.NewRecord(t)
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *chatServer) handleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.runner.Transcript(id); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".jsonl"))
	if err := s.runner.Export(id, w); err != nil {
		log.Printf("[chat] export %s: %v", id, err)
	}
}

func (s *chatServer) handleReset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.runner.Reset(id)
	switch {
	case errors.Is(err, runner.ErrChatNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ak.ErrSessionBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	}
}

// errorKind names the failure for the page.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ak.ErrToolLoopBudgetExceeded):
		return "ToolLoopBudgetExceeded"
	case errors.Is(err, ak.ErrCancelled):
		return "Cancelled"
	case errors.Is(err, ak.ErrBackendTimeout):
		return "BackendTimeout"
	case errors.Is(err, ak.ErrBackendUnavailable):
		return "BackendUnavailable"
	case errors.Is(err, ak.ErrProtocolSequence):
		return "ProtocolSequence"
	default:
		return "Internal"
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ak.ErrToolLoopBudgetExceeded):
		// The partial answer is still a usable reply.
		return http.StatusOK
	case errors.Is(err, ak.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, ak.ErrBackendTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ak.ErrBackendUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// renderHTML renders an answer for the page. Raw HTML in the answer is
// dropped since tool output can put arbitrary text into it.
func renderHTML(md string) string {
	if md == "" {
		return ""
	}
	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank | html.Safelink | html.SkipHTML})
	return string(markdown.ToHTML([]byte(md), p, r))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("[chat] failed to write response: %v", err)
	}
}
