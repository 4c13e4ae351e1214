package sentiment

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/ZanzyTHEbar/belief-engine/internal/errors"
	"github.com/ZanzyTHEbar/belief-engine/internal/monitoring"
	"github.com/ZanzyTHEbar/belief-engine/internal/resilience"
)

const llmAPIName = "ollama"

// LLMConfig configures an LLMAnalyzer against an OpenAI compatible endpoint
// such as Ollama.
type LLMConfig struct {
	Host        string
	Model       string
	Temperature float64
	Timeout     time.Duration
	HTTPClient  *http.Client
	Breaker     *resilience.CircuitBreaker
	Retry       resilience.RetryConfig
	Metrics     *monitoring.Metrics
}

// LLMAnalyzer asks a chat model for a JSON analysis.
type LLMAnalyzer struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	breaker     *resilience.CircuitBreaker
	retry       resilience.RetryConfig
	metrics     *monitoring.Metrics
}

func NewLLMAnalyzer(cfg LLMConfig) *LLMAnalyzer {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.NewCircuitBreaker(llmAPIName, resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			RecoveryTimeout:  time.Minute,
			SuccessThreshold: 1,
		})
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.SlowRetryPolicy
	}
	if cfg.Retry.RetryableErrors == nil {
		cfg.Retry.RetryableErrors = retryableLLMError
	}

	oc := openai.DefaultConfig(llmAPIName)
	oc.BaseURL = strings.TrimRight(cfg.Host, "/") + "/v1"
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	return &LLMAnalyzer{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		timeout:     cfg.Timeout,
		breaker:     cfg.Breaker,
		retry:       cfg.Retry,
		metrics:     cfg.Metrics,
	}
}

func (a *LLMAnalyzer) Name() string { return "llm:" + a.model }

// Analyze sends one chat completion. Transport and server failures are
// returned as errors; a reply that cannot be parsed yields the fallback
// result instead.
func (a *LLMAnalyzer) Analyze(ctx context.Context, in Input) (Result, error) {
	if strings.TrimSpace(in.Title) == "" && strings.TrimSpace(in.Content) == "" {
		return Result{}, apperrors.NewValidationError("nothing to analyze", "title")
	}

	var reply string
	start := time.Now()
	err := a.breaker.Call(func() error {
		return resilience.RetryWithConfig(ctx, a.retry, func() error {
			callCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			resp, err := a.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
				Model:       a.model,
				Temperature: a.temperature,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: buildPrompt(in)},
				},
			})
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("model returned no choices")
			}
			reply = resp.Choices[0].Message.Content
			return nil
		})
	})
	if a.metrics != nil {
		a.metrics.RecordExternalAPIRequest(llmAPIName, err == nil)
	}
	if err != nil {
		slog.Error("LLM analysis failed", "model", a.model, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return Result{}, apperrors.NewExternalAPIError("Ollama", err)
	}

	r, perr := ParseReply(reply)
	if perr != nil {
		slog.Warn("Unparseable LLM reply, using fallback", "model", a.model, "error", perr)
		r = FallbackResult(in, reply)
	}
	r.Analyzer = a.Name()
	return r, nil
}

func retryableLLMError(err error) bool {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return apperrors.IsRetryableError(err)
}

const systemPrompt = "You are a news analyst. Reply with a single JSON object and nothing else."

func buildPrompt(in Input) string {
	content := in.Content
	if strings.TrimSpace(content) == "" {
		content = "No additional content provided"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following news article.\n\nTitle: %s\nContent: %s\n\n", in.Title, content)
	b.WriteString(`Return a JSON object with this structure:
{
  "sentiment": {
    "polarity": <float in [-1, 1], -1 very negative, 0 neutral, 1 very positive>,
    "subjectivity": <float in [0, 1], 0 objective, 1 subjective>,
    "emotion": "<one of: ` + strings.Join(Emotions, ", ") + `>",
    "confidence": <float in [0, 1]>
  },
  "categorization": {
    "primary_category": "<one of: ` + strings.Join(Categories, ", ") + `>",
    "category_confidence": <float in [0, 1]>,
    "all_categories": ["<every relevant category>"],
    "all_topics": ["<specific topics>"]
  },
  "keywords": {
    "primary_keywords": ["<5-10 keywords or phrases>"],
    "entities": ["<people, organizations and places>"]
  },
  "summary": "<one or two sentences>",
  "reasoning": "<why this polarity and category>"
}

Polarity scale:
- 0.7 to 1.0: major achievements, breakthroughs
- 0.3 to 0.7: good news, improvements
- 0.1 to 0.3: minor good news
- -0.1 to 0.1: factual reporting
- -0.3 to -0.1: minor concerns, delays
- -0.7 to -0.3: problems, failures
- -1.0 to -0.7: disasters, major failures`)
	return b.String()
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// flexFloat accepts numbers and numeric strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", data)
	}
	*f = flexFloat(v)
	return nil
}

// stringList accepts a JSON array of strings or a single comma separated string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = cleanList(list)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*l = nil
		return nil
	}
	*l = cleanList(strings.Split(s, ","))
	return nil
}

func cleanList(in []string) []string {
	out := []string{}
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type llmReply struct {
	Sentiment struct {
		Polarity     *flexFloat `json:"polarity"`
		Subjectivity flexFloat  `json:"subjectivity"`
		Emotion      string     `json:"emotion"`
		Confidence   flexFloat  `json:"confidence"`
	} `json:"sentiment"`
	Categorization struct {
		PrimaryCategory    string     `json:"primary_category"`
		CategoryConfidence flexFloat  `json:"category_confidence"`
		AllCategories      stringList `json:"all_categories"`
		AllTopics          stringList `json:"all_topics"`
	} `json:"categorization"`
	Keywords struct {
		Primary  stringList `json:"primary_keywords"`
		Entities stringList `json:"entities"`
	} `json:"keywords"`
	Summary   string `json:"summary"`
	Reasoning string `json:"reasoning"`
}

// ParseReply extracts the first JSON object from a model reply and
// normalizes it: scores are clamped, unknown emotions become neutral and
// unknown categories become Other.
func ParseReply(reply string) (Result, error) {
	raw := jsonObject.FindString(reply)
	if raw == "" {
		return Result{}, fmt.Errorf("no JSON object in reply")
	}
	var parsed llmReply
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Result{}, fmt.Errorf("decode reply: %w", err)
	}
	if parsed.Sentiment.Polarity == nil {
		return Result{}, fmt.Errorf("reply has no polarity")
	}

	r := Result{
		Polarity:           clamp(float64(*parsed.Sentiment.Polarity), -1, 1),
		Subjectivity:       clamp(float64(parsed.Sentiment.Subjectivity), 0, 1),
		Emotion:            strings.ToLower(strings.TrimSpace(parsed.Sentiment.Emotion)),
		Confidence:         clamp(float64(parsed.Sentiment.Confidence), 0, 1),
		Category:           canonicalCategory(parsed.Categorization.PrimaryCategory),
		CategoryConfidence: clamp(float64(parsed.Categorization.CategoryConfidence), 0, 1),
		Topics:             nonEmpty(parsed.Categorization.AllTopics),
		Keywords:           nonEmpty(parsed.Keywords.Primary),
		Entities:           nonEmpty(parsed.Keywords.Entities),
		Summary:            strings.TrimSpace(parsed.Summary),
		Reasoning:          strings.TrimSpace(parsed.Reasoning),
	}
	if !contains(Emotions, r.Emotion) {
		r.Emotion = "neutral"
	}
	r.Categories = []string{}
	for _, c := range parsed.Categorization.AllCategories {
		if c = canonicalCategory(c); !contains(r.Categories, c) {
			r.Categories = append(r.Categories, c)
		}
	}
	if !contains(r.Categories, r.Category) {
		r.Categories = append([]string{r.Category}, r.Categories...)
	}
	return r, nil
}

func canonicalCategory(c string) string {
	c = strings.TrimSpace(c)
	for _, known := range Categories {
		if strings.EqualFold(c, known) {
			return known
		}
	}
	return "Other"
}

func nonEmpty(l stringList) []string {
	if l == nil {
		return []string{}
	}
	return l
}

// FallbackResult is the neutral analysis used when a model reply cannot be
// parsed.
func FallbackResult(in Input, reply string) Result {
	return Result{
		Polarity:           0,
		Subjectivity:       0.5,
		Emotion:            "neutral",
		Confidence:         0.3,
		Category:           "Other",
		CategoryConfidence: 0.3,
		Categories:         []string{"Other"},
		Topics:             []string{"Unknown"},
		Keywords:           []string{},
		Entities:           []string{},
		Summary:            "Analysis of: " + truncate(in.Title, 100) + "...",
		Reasoning:          "Fallback analysis due to parsing error: " + truncate(reply, 200) + "...",
	}
}
