// Package analysis asks an external LLM backend to comment on match results:
// for each requirement with at least one match, a short assessment of how
// well the found passages address the clause. Commentary is stored verbatim
// on the match and never interpreted; the whole step is optional and its
// failures never fail a run.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/esglens/esglens/internal/domain/document"
	"github.com/esglens/esglens/internal/domain/matching"
	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
	"github.com/esglens/esglens/pkg/errors"
)

// Config configures the analysis backend. Zero values fall back to the
// documented defaults.
type Config struct {
	// BaseURL of the generation server (default http://localhost:11434).
	BaseURL string

	// Model is the generation model name (default llama3).
	Model string

	// Timeout bounds each generation request. Generation is slow; the
	// default is generous.
	Timeout time.Duration

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama3"
	defaultTimeout = 120 * time.Second
)

// Service generates commentary via an Ollama-compatible generation endpoint
// (POST /api/generate with {model, prompt, stream:false}).
type Service struct {
	client  *http.Client
	baseURL string
	model   string
	logger  logging.Logger
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// New constructs an analysis service.
func New(cfg Config, logger logging.Logger) *Service {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{
		client:  cfg.Client,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		logger:  logger.Named("analysis"),
	}
}

// Commentary asks the backend how well the passages address the requirement
// and returns the response verbatim.
func (s *Service) Commentary(ctx context.Context, requirement string, passages []string) (string, error) {
	prompt := buildPrompt(requirement, passages)
	body, err := json.Marshal(generateRequest{Model: s.model, Prompt: prompt})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "marshal generation request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeAnalysisUnavailable, "build generation request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeAnalysisUnavailable, "analysis backend unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", errors.New(errors.ErrCodeAnalysisUnavailable,
			fmt.Sprintf("analysis backend returned status %d", resp.StatusCode)).
			WithDetail(string(payload))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "decode generation response")
	}
	return strings.TrimSpace(out.Response), nil
}

// Annotate fills Commentary on the top-ranked match of every requirement in
// the set. Backend errors are logged and skipped; Annotate returns how many
// requirements received commentary.
func (s *Service) Annotate(ctx context.Context, reqs *document.RequirementSet, set *matching.MatchSet) int {
	texts := make(map[string]string, len(reqs.Items))
	for _, r := range reqs.Items {
		texts[r.Code] = r.Text
	}

	annotated := 0
	for _, code := range reqs.Codes() {
		ms := set.Matches[code]
		if len(ms) == 0 {
			continue
		}
		if ctx.Err() != nil {
			return annotated
		}
		passages := make([]string, len(ms))
		for i, m := range ms {
			passages[i] = m.ParagraphText
		}
		text, err := s.Commentary(ctx, texts[code], passages)
		if err != nil {
			s.logger.Warn("commentary skipped",
				logging.String("requirement_code", code),
				logging.Err(err),
			)
			continue
		}
		set.Matches[code][0].Commentary = text
		annotated++
	}
	return annotated
}

// buildPrompt renders the generation prompt. Kept deterministic so repeated
// runs send identical prompts for identical matches.
func buildPrompt(requirement string, passages []string) string {
	var sb strings.Builder
	sb.WriteString("You are reviewing a sustainability report against a reporting standard.\n")
	sb.WriteString("Requirement:\n")
	sb.WriteString(requirement)
	sb.WriteString("\n\nPassages found in the report:\n")
	for i, p := range passages {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, p)
	}
	sb.WriteString("\nIn two or three sentences, assess how completely the passages address the requirement.")
	return sb.String()
}
