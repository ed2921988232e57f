package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/envutil"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/httpx"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
)

// OpenAIClient scores steps through an OpenAI-compatible /v1/responses
// endpoint with a strict JSON schema, one call per framework×step.
type OpenAIClient struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	maxAttempts int
	parallelism int
	log         *logger.Logger
}

// NewOpenAI builds a client from the environment. Callers should have
// checked that OPENAI_API_KEY is set (FromEnv does).
func NewOpenAI(log *logger.Logger) *OpenAIClient {
	if log == nil {
		log = logger.New("test")
	}
	maxAttempts := envutil.Int("OPENAI_MAX_ATTEMPTS", 3)
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	parallelism := envutil.Int("ADVISOR_PARALLELISM", 4)
	if parallelism < 1 {
		parallelism = 1
	}
	return &OpenAIClient{
		httpClient:  &http.Client{Timeout: envutil.Duration("OPENAI_TIMEOUT", 30*time.Second)},
		apiKey:      strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		baseURL:     strings.TrimRight(envutil.String("OPENAI_BASE_URL", defaultBaseURL), "/"),
		model:       envutil.String("OPENAI_MODEL", defaultModel),
		maxAttempts: maxAttempts,
		parallelism: parallelism,
		log:         log,
	}
}

func (c *OpenAIClient) AssessSteps(ctx context.Context, funnel FunnelDescription, frameworks []string) ([]Assessment, error) {
	out := make([]Assessment, len(frameworks)*len(funnel.Steps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for fi, fw := range frameworks {
		for si, step := range funnel.Steps {
			slot := fi*len(funnel.Steps) + si
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				out[slot] = c.assessOne(gctx, fw, step, funnel.Source)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// assessOne never fails: upstream trouble degrades to fallback scores so a
// single bad call cannot sink a whole assessment.
func (c *OpenAIClient) assessOne(ctx context.Context, framework string, step StepDescription, source string) Assessment {
	out := Assessment{Framework: framework, StepIndex: step.Index}

	raw, err := c.generate(ctx, assessPrompt(framework, step, source))
	if err != nil {
		c.log.Warn("advisor call failed, using transport fallback",
			"framework", framework, "step_index", step.Index, "error", err)
		out.Confidence = transportFallbackConfidence
		out.EstimatedUpliftPP = transportFallbackUpliftPP
		return out
	}

	var payload assessmentPayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		c.log.Warn("advisor reply did not decode, using parse fallback",
			"framework", framework, "step_index", step.Index, "error", err)
		out.Confidence = parseFallbackConfidence
		out.EstimatedUpliftPP = parseFallbackUpliftPP
		return out
	}

	out.Confidence = clampFloat(payload.Confidence, 0, 1)
	out.EstimatedUpliftPP = payload.EstimatedUpliftPP
	if payload.Motivation != nil {
		m := clampFloat(*payload.Motivation, 1, 5)
		out.Motivation = &m
	}
	if payload.Trigger != nil {
		t := clampFloat(*payload.Trigger, 1, 5)
		out.Trigger = &t
	}
	return out
}

// generate posts one prompt and retries retryable failures with jittered
// backoff, honoring Retry-After when the upstream sends one.
func (c *OpenAIClient) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	delay := 500 * time.Millisecond
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := httpx.JitterSleep(ctx, delay); err != nil {
				return "", err
			}
			delay *= 2
		}
		text, retryAfter, err := c.doOnce(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !httpx.IsRetryableError(err) {
			return "", err
		}
		if retryAfter > 0 {
			delay = retryAfter
		}
	}
	return "", lastErr
}

func (c *OpenAIClient) doOnce(ctx context.Context, prompt string) (string, time.Duration, error) {
	reqBody := responsesRequest{
		Model: c.model,
		Input: []inputItem{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Text: &textOption{Format: textFormat{
			Type:   "json_schema",
			Name:   "step_assessment",
			Schema: assessmentSchema,
			Strict: true,
		}},
		MaxOutputTokens: 300,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryAfter := httpx.RetryAfterDuration(resp.Header.Get("Retry-After"))
		return "", retryAfter, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed responsesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", 0, fmt.Errorf("decode response: %w", err)
	}
	text := extractOutputText(&parsed)
	if text == "" {
		return "", 0, fmt.Errorf("response contained no output text")
	}
	return text, 0, nil
}

const systemPrompt = "You score funnel steps for conversion optimization. " +
	"Answer only with JSON matching the schema. confidence is in [0,1]; " +
	"estimated_uplift_pp is conversion uplift in percentage points, within [-30,30]; " +
	"motivation and trigger are 1-5 scores for behavioral frameworks and null otherwise."

func assessPrompt(framework string, step StepDescription, source string) string {
	return fmt.Sprintf(
		"Assess one funnel step under the %q conversion framework.\n"+
			"Step %d: question_count=%d avg_invasiveness=%.2f avg_difficulty=%.2f "+
			"boosts=%d observed_cr=%.4f traffic_source=%s.\n"+
			"Estimate the uplift this framework could unlock on this step.",
		framework, step.Index, step.QuestionCount, step.AvgInvasiveness,
		step.AvgDifficulty, step.Boosts, step.ObservedCR, source)
}

var assessmentSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "confidence": {"type": "number"},
    "estimated_uplift_pp": {"type": "number"},
    "motivation": {"type": ["number", "null"]},
    "trigger": {"type": ["number", "null"]}
  },
  "required": ["confidence", "estimated_uplift_pp", "motivation", "trigger"],
  "additionalProperties": false
}`)

type assessmentPayload struct {
	Confidence        float64  `json:"confidence"`
	EstimatedUpliftPP float64  `json:"estimated_uplift_pp"`
	Motivation        *float64 `json:"motivation"`
	Trigger           *float64 `json:"trigger"`
}

type responsesRequest struct {
	Model           string      `json:"model"`
	Input           []inputItem `json:"input"`
	Text            *textOption `json:"text,omitempty"`
	MaxOutputTokens int         `json:"max_output_tokens,omitempty"`
}

type inputItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type textOption struct {
	Format textFormat `json:"format"`
}

type textFormat struct {
	Type   string          `json:"type"`
	Name   string          `json:"name,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
	Strict bool            `json:"strict,omitempty"`
}

type responsesResponse struct {
	Output []outputItem `json:"output"`
}

type outputItem struct {
	Type    string          `json:"type"`
	Content []outputContent `json:"content"`
}

type outputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func extractOutputText(resp *responsesResponse) string {
	var b strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				b.WriteString(part.Text)
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one despite the schema format.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai: status %d: %s", e.StatusCode, truncate(e.Body, 200))
}

func (e *openAIHTTPError) HTTPStatusCode() int { return e.StatusCode }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
