package advisor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

func testFunnel() FunnelDescription {
	return FunnelDescription{
		Source: "paid_search",
		Steps: []StepDescription{
			{Index: 0, QuestionCount: 1, AvgInvasiveness: 2, AvgDifficulty: 2, ObservedCR: 0.85},
			{Index: 1, QuestionCount: 2, AvgInvasiveness: 3, AvgDifficulty: 3, ObservedCR: 0.70},
		},
	}
}

func newTestClient(t *testing.T, url string) *OpenAIClient {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", url)
	return NewOpenAI(logger.New("test"))
}

func TestMockAssessStepsOrderAndScores(t *testing.T) {
	got, err := NewMock().AssessSteps(context.Background(), testFunnel(), []string{"pas", "fogg"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 assessments, got %d", len(got))
	}
	// Framework-major order: pas/0, pas/1, fogg/0, fogg/1.
	if got[0].Framework != "pas" || got[0].StepIndex != 0 ||
		got[2].Framework != "fogg" || got[2].StepIndex != 0 {
		t.Fatalf("unexpected order: %+v", got)
	}
	for _, a := range got {
		if a.Confidence != 0.8 || a.EstimatedUpliftPP != 2.5 {
			t.Fatalf("unexpected scores: %+v", a)
		}
		if a.Motivation != nil || a.Trigger != nil {
			t.Fatalf("mock should not set behavioral scores: %+v", a)
		}
	}
}

func TestOpenAIDecodesAssessment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"output":[{"type":"message","content":[{"type":"output_text",
			"text":"{\"confidence\":1.4,\"estimated_uplift_pp\":4.2,\"motivation\":3.4,\"trigger\":null}"}]}]}`))
	}))
	defer srv.Close()

	funnel := testFunnel()
	funnel.Steps = funnel.Steps[:1]
	got, err := newTestClient(t, srv.URL).AssessSteps(context.Background(), funnel, []string{"fogg"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 assessment, got %d", len(got))
	}
	a := got[0]
	if a.Confidence != 1.0 {
		t.Fatalf("confidence should clamp to 1.0, got %v", a.Confidence)
	}
	if a.EstimatedUpliftPP != 4.2 {
		t.Fatalf("uplift = %v", a.EstimatedUpliftPP)
	}
	if a.Motivation == nil || *a.Motivation != 3.4 {
		t.Fatalf("motivation = %v", a.Motivation)
	}
	if a.Trigger != nil {
		t.Fatalf("null trigger should stay absent, got %v", *a.Trigger)
	}
}

func TestOpenAITransportFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	funnel := testFunnel()
	funnel.Steps = funnel.Steps[:1]
	got, err := newTestClient(t, srv.URL).AssessSteps(context.Background(), funnel, []string{"pas"})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Confidence != 0.7 || got[0].EstimatedUpliftPP != 1.5 {
		t.Fatalf("expected transport fallback, got %+v", got[0])
	}
}

func TestOpenAIParseFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"output":[{"type":"message","content":[{"type":"output_text",
			"text":"I think this step looks fine."}]}]}`))
	}))
	defer srv.Close()

	funnel := testFunnel()
	funnel.Steps = funnel.Steps[:1]
	got, err := newTestClient(t, srv.URL).AssessSteps(context.Background(), funnel, []string{"pas"})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Confidence != 0.5 || got[0].EstimatedUpliftPP != 1.0 {
		t.Fatalf("expected parse fallback, got %+v", got[0])
	}
}

func TestOpenAIRetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"output":[{"type":"message","content":[{"type":"output_text",
			"text":"{\"confidence\":0.6,\"estimated_uplift_pp\":2.0,\"motivation\":null,\"trigger\":null}"}]}]}`))
	}))
	defer srv.Close()

	funnel := testFunnel()
	funnel.Steps = funnel.Steps[:1]
	got, err := newTestClient(t, srv.URL).AssessSteps(context.Background(), funnel, []string{"pas"})
	if err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
	if got[0].Confidence != 0.6 {
		t.Fatalf("expected decoded score after retry, got %+v", got[0])
	}
}

func TestStripFences(t *testing.T) {
	in := "```json\n{\"confidence\":0.5}\n```"
	if got := stripFences(in); got != `{"confidence":0.5}` {
		t.Fatalf("got %q", got)
	}
	if got := stripFences(`{"a":1}`); got != `{"a":1}` {
		t.Fatalf("unfenced input should pass through, got %q", got)
	}
}

func TestFromEnvSelectsMock(t *testing.T) {
	t.Setenv("ADVISOR_MODE", "mock")
	t.Setenv("OPENAI_API_KEY", "sk-present")
	if _, ok := FromEnv(logger.New("test")).(*Mock); !ok {
		t.Fatal("ADVISOR_MODE=mock should force the mock client")
	}

	t.Setenv("ADVISOR_MODE", "")
	t.Setenv("OPENAI_API_KEY", "")
	if _, ok := FromEnv(logger.New("test")).(*Mock); !ok {
		t.Fatal("missing key should fall back to the mock client")
	}
}
