// Package server exposes the query pipeline over HTTP: POST /chat streams
// pipeline progress and answer fragments as newline-delimited JSON events on
// a server-sent event stream, with health and metrics endpoints alongside.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/legaladviser/legalrag/pkg/query"
	"github.com/legaladviser/legalrag/pkg/vectorstore"
)

// DefaultRequestTimeout bounds one chat request end to end.
const DefaultRequestTimeout = 5 * time.Minute

// ChatRequest is the POST /chat body: conversation history, oldest first.
type ChatRequest struct {
	Queries []string `json:"queries"`
}

// Server wires the query pipeline stages to the HTTP transport. One request
// owns its whole pipeline run; there is no shared mutable state between
// requests beyond the store and the stateless model clients.
type Server struct {
	translator *query.Translator
	retriever  *query.Retriever
	answerer   *query.AnswerGenerator
	store      vectorstore.Store
	metrics    *Metrics
	timeout    time.Duration
	log        zerolog.Logger
}

// New creates the server. All pipeline stages are required; timeout <= 0
// falls back to DefaultRequestTimeout.
func New(translator *query.Translator, retriever *query.Retriever, answerer *query.AnswerGenerator, store vectorstore.Store, timeout time.Duration, log zerolog.Logger) (*Server, error) {
	if translator == nil || retriever == nil || answerer == nil || store == nil {
		return nil, fmt.Errorf("translator, retriever, answerer and store are required")
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Server{
		translator: translator,
		retriever:  retriever,
		answerer:   answerer,
		store:      store,
		metrics:    NewMetrics(),
		timeout:    timeout,
		log:        log,
	}, nil
}

// Handler returns the full route set wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return cors(mux)
}

// handleChat runs the query pipeline for one conversation and streams its
// progress. Stage sequence: Understanding → Searching → Generating →
// Answering; any stage failure emits one terminal Error event and nothing
// after it.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Queries) == 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "No queries provided"})
		s.metrics.observeRequest("rejected", start)
		return
	}

	events, err := newEventWriter(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		s.metrics.observeRequest("rejected", start)
		return
	}

	// The request context carries client disconnects into every stage, so
	// generation stops when nobody is listening.
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	emit := func(evt Event) bool {
		s.metrics.observeEvent(evt)
		if err := events.send(evt); err != nil {
			s.log.Debug().Err(err).Msg("client went away mid-stream")
			return false
		}
		return true
	}
	fail := func(stage string, message string, err error) {
		s.log.Error().Err(err).Str("stage", stage).Msg("chat pipeline failed")
		emit(Event{Step: StepError, Status: StatusError, Message: message, Icon: Icon{Emoji: "⚠️"}})
		s.metrics.observeRequest("error", start)
	}

	if !emit(Event{Step: StepUnderstanding, Status: StatusProcessing, Message: "Understanding relevant context", Icon: Icon{Emoji: "🤔"}}) {
		return
	}
	translated, err := s.translator.Translate(ctx, req.Queries)
	if err != nil {
		fail(StepUnderstanding, "Could not understand the question.", err)
		return
	}
	if !emit(Event{Step: StepUnderstanding, Status: StatusResult, Message: "Found relevant questions.", Icon: Icon{Emoji: "🤔"}}) {
		return
	}

	if !emit(Event{Step: StepSearching, Status: StatusProcessing, Message: "Searching Relevant Laws", Icon: Icon{Emoji: "🔍"}}) {
		return
	}
	passages, err := s.retriever.Retrieve(ctx, translated.SearchText())
	if err != nil {
		fail(StepSearching, "Searching the legal documents failed.", err)
		return
	}
	if !emit(Event{Step: StepSearching, Status: StatusResult, Message: fmt.Sprintf("Top %d passages found.", len(passages)), Icon: Icon{Emoji: "✅"}}) {
		return
	}

	if !emit(Event{Step: StepGenerating, Status: StatusProcessing, Message: "Generating answer", Icon: Icon{Emoji: "✍️"}}) {
		return
	}
	question := req.Queries[len(req.Queries)-1]
	for fragment, err := range s.answerer.Stream(ctx, question, passages) {
		if err != nil {
			fail(StepAnswering, "Generating the answer failed.", err)
			return
		}
		if !emit(Event{Step: StepAnswering, Status: StatusResult, Message: fragment, Icon: Icon{Emoji: "📄"}}) {
			return
		}
	}

	s.metrics.observeRequest("ok", start)
}

// handleHealth reports store availability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Health(r.Context()); err != nil {
		s.log.Warn().Err(err).Msg("health check failed")
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// cors applies permissive cross-origin handling with credentials support and
// answers preflight requests before they reach the pipeline.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
