package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/legaladviser/legalrag/pkg/ai"
	"github.com/legaladviser/legalrag/pkg/query"
	"github.com/legaladviser/legalrag/pkg/vectorstore"
)

// stubStore is the minimal store the server needs: queryable and healthy
// unless told otherwise.
type stubStore struct {
	matches   []vectorstore.Match
	queryErr  error
	healthErr error
}

func (s *stubStore) Upsert(context.Context, []vectorstore.Entry) ([]string, error) {
	return nil, nil
}

func (s *stubStore) Query(context.Context, []float32, int, bool) ([]vectorstore.Match, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.matches, nil
}

func (s *stubStore) Delete(context.Context, []string) error { return nil }
func (s *stubStore) Health(context.Context) error           { return s.healthErr }
func (s *stubStore) Close() error                           { return nil }

const translatedJSON = `{"en": ["minor contract validity"], "originalQuestion": "Can a minor sign a contract?"}`

func newTestServer(t *testing.T, translateClient, answerClient *ai.MockClient, store *stubStore) *Server {
	t.Helper()
	log := zerolog.New(zerolog.NewTestWriter(t))
	srv, err := New(
		query.NewTranslator(translateClient, log),
		query.NewRetriever(ai.NewMockClient(""), store, 5),
		query.NewAnswerGenerator(answerClient),
		store,
		time.Minute,
		log,
	)
	if err != nil {
		t.Fatal(err)
	}
	return srv
}

func postChat(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// decodeEvents parses every data: frame from an SSE body.
func decodeEvents(t *testing.T, body *bytes.Buffer) []Event {
	t.Helper()
	var events []Event
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var evt Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &evt); err != nil {
			t.Fatalf("bad event frame %q: %v", line, err)
		}
		events = append(events, evt)
	}
	return events
}

func TestChatRejectsEmptyQueries(t *testing.T) {
	t.Parallel()

	translate := ai.NewMockClient(translatedJSON)
	srv := newTestServer(t, translate, ai.NewMockClient("answer"), &stubStore{})

	for _, body := range []string{`{"queries": []}`, `{}`, `not json`} {
		rec := postChat(t, srv.Handler(), body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("body %q: %v", body, err)
		}
		if resp["error"] != "No queries provided" {
			t.Errorf("body %q: error = %q", body, resp["error"])
		}
	}
	if len(translate.Prompts) != 0 {
		t.Error("rejected request reached the translator")
	}
}

func TestChatStreamsFullEventSequence(t *testing.T) {
	t.Parallel()

	store := &stubStore{matches: []vectorstore.Match{
		{ID: "a", Document: "Section 5.", Score: 0.9},
		{ID: "b", Document: "Section 9.", Score: 0.6},
	}}
	answer := ai.NewMockClient("").WithStreamParts("A minor ", "cannot.")
	srv := newTestServer(t, ai.NewMockClient(translatedJSON), answer, store)

	rec := postChat(t, srv.Handler(), `{"queries": ["Can a minor sign a contract?"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	events := decodeEvents(t, rec.Body)
	want := []struct {
		step   string
		status Status
	}{
		{StepUnderstanding, StatusProcessing},
		{StepUnderstanding, StatusResult},
		{StepSearching, StatusProcessing},
		{StepSearching, StatusResult},
		{StepGenerating, StatusProcessing},
		{StepAnswering, StatusResult},
		{StepAnswering, StatusResult},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(want), events)
	}
	for i, w := range want {
		if events[i].Step != w.step || events[i].Status != w.status {
			t.Errorf("event %d = %s/%s, want %s/%s", i, events[i].Step, events[i].Status, w.step, w.status)
		}
	}

	if events[3].Message != "Top 2 passages found." {
		t.Errorf("search result message = %q", events[3].Message)
	}
	if got := events[5].Message + events[6].Message; got != "A minor cannot." {
		t.Errorf("answer fragments = %q", got)
	}
	if events[5].Icon.Emoji != "📄" {
		t.Errorf("answer emoji = %q", events[5].Icon.Emoji)
	}
}

func TestChatErrorEventIsTerminalAndSanitized(t *testing.T) {
	t.Parallel()

	store := &stubStore{queryErr: errors.New("qdrant: connection refused at 10.0.0.3:6334")}
	srv := newTestServer(t, ai.NewMockClient(translatedJSON), ai.NewMockClient("unused"), store)

	rec := postChat(t, srv.Handler(), `{"queries": ["question"]}`)
	events := decodeEvents(t, rec.Body)
	if len(events) == 0 {
		t.Fatal("no events")
	}

	last := events[len(events)-1]
	if last.Step != StepError || last.Status != StatusError {
		t.Fatalf("last event = %s/%s, want Error/error", last.Step, last.Status)
	}
	if strings.Contains(last.Message, "10.0.0.3") || strings.Contains(last.Message, "qdrant") {
		t.Errorf("error message leaks internals: %q", last.Message)
	}
	for _, evt := range events[:len(events)-1] {
		if evt.Status == StatusError {
			t.Error("error event emitted before the terminal one")
		}
	}
	for _, evt := range events {
		if evt.Step == StepAnswering {
			t.Error("answer fragments emitted after a failed search")
		}
	}
}

func TestChatTranslatorFailureStopsPipeline(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	srv := newTestServer(t, ai.NewMockClientWithError("rate limited"), ai.NewMockClient("unused"), store)

	rec := postChat(t, srv.Handler(), `{"queries": ["question"]}`)
	events := decodeEvents(t, rec.Body)

	if len(events) != 2 {
		t.Fatalf("got %d events, want processing + error: %+v", len(events), events)
	}
	if events[0].Step != StepUnderstanding || events[1].Step != StepError {
		t.Errorf("events = %s, %s", events[0].Step, events[1].Step)
	}
}

func TestCORSPreflightSkipsPipeline(t *testing.T) {
	t.Parallel()

	translate := ai.NewMockClient(translatedJSON)
	srv := newTestServer(t, translate, ai.NewMockClient("answer"), &stubStore{})

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow-origin = %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("missing allow-credentials header")
	}
	if len(translate.Prompts) != 0 {
		t.Error("preflight reached the pipeline")
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()
		srv := newTestServer(t, ai.NewMockClient(translatedJSON), ai.NewMockClient(""), &stubStore{})
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("store down", func(t *testing.T) {
		t.Parallel()
		store := &stubStore{healthErr: errors.New("no route to host")}
		srv := newTestServer(t, ai.NewMockClient(translatedJSON), ai.NewMockClient(""), store)
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, ai.NewMockClient(translatedJSON), ai.NewMockClient("answer words"), &stubStore{})
	postChat(t, srv.Handler(), `{"queries": ["q"]}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "legalrag_chat_requests_total") {
		t.Error("metrics output missing request counter")
	}
	if !strings.Contains(body, "legalrag_stream_events_total") {
		t.Error("metrics output missing event counter")
	}
}
