// Package matcher implements the translator directory port against an HTTP
// matching service. The service returns translator candidates for a language
// pair and qualification level; an optional JMESPath expression narrows the
// raw response before candidate ids are extracted.
package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/tolkdirekt/dispatchd/internal/domain/model"
)

const defaultCandidateLimit = 100

// Config configures the HTTP matcher client.
type Config struct {
	// BaseURL is the matching service endpoint, e.g. "http://matcher:8080".
	BaseURL string
	// APIKey authenticates requests when set.
	APIKey string
	// FilterExpr is an optional JMESPath expression applied to the response
	// body before ids are extracted. It must yield a list of candidate
	// objects (or plain id strings).
	FilterExpr string
	// CandidateLimit caps how many candidates one query returns.
	CandidateLimit int
	// Timeout bounds a single directory call.
	Timeout time.Duration
	// Client overrides the HTTP client (useful for tests).
	Client *http.Client
	// Logger receives request diagnostics when set.
	Logger *slog.Logger
}

// Client queries the matching service for candidate translators.
type Client struct {
	baseURL string
	apiKey  string
	filter  jmespath.JMESPath
	limit   int
	client  *http.Client
	logger  *slog.Logger
}

// NewClient constructs a matcher client, compiling the filter expression up
// front so a bad expression fails at startup, not per query.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("matcher base url is required")
	}

	var filter jmespath.JMESPath
	if expr := strings.TrimSpace(cfg.FilterExpr); expr != "" {
		compiled, err := jmespath.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile candidate filter: %w", err)
		}
		filter = compiled
	}

	limit := cfg.CandidateLimit
	if limit <= 0 {
		limit = defaultCandidateLimit
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	var logger *slog.Logger
	if cfg.Logger != nil {
		logger = cfg.Logger.With("component", "matcher")
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		filter:  filter,
		limit:   limit,
		client:  hc,
		logger:  logger,
	}, nil
}

// candidateQuery is the request body sent to the matching service.
type candidateQuery struct {
	FromLanguage string `json:"from_language"`
	ToLanguage   string `json:"to_language"`
	Level        string `json:"translator_level"`
	Immediate    bool   `json:"immediate"`
	DueAt        string `json:"due_at"`
	Limit        int    `json:"limit"`
}

// CandidatesForJob returns translator ids eligible for the job.
func (c *Client) CandidatesForJob(ctx context.Context, job *model.Job) ([]string, error) {
	if job == nil {
		return nil, errors.New("job is required")
	}

	query := candidateQuery{
		FromLanguage: job.FromLanguage,
		ToLanguage:   job.ToLanguage,
		Level:        string(job.TranslatorLevel),
		Immediate:    job.Immediate,
		DueAt:        job.DueAt.UTC().Format(time.RFC3339),
		Limit:        c.limit,
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal candidate query: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/v1/translators/search",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("build candidate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query matching service: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("matching service returned status %d", resp.StatusCode)
	}

	var payload any
	if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr != nil {
		return nil, fmt.Errorf("decode candidate response: %w", decodeErr)
	}

	ids, err := c.extractIDs(payload)
	if err != nil {
		return nil, err
	}

	if c.logger != nil {
		c.logger.DebugContext(ctx, "candidates resolved",
			"job_id", job.ID,
			"count", len(ids),
		)
	}
	return ids, nil
}

// extractIDs applies the optional filter and pulls candidate ids out of the
// response. The service wraps its list in {"translators": [...]}; each entry
// is either an object with an "id" field or a bare id string.
func (c *Client) extractIDs(payload any) ([]string, error) {
	data := payload
	if m, ok := payload.(map[string]any); ok {
		if list, found := m["translators"]; found {
			data = list
		}
	}

	if c.filter != nil {
		filtered, err := c.filter.Search(data)
		if err != nil {
			return nil, fmt.Errorf("apply candidate filter: %w", err)
		}
		data = filtered
	}

	entries, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected candidate response shape %T", data)
	}

	seen := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		id := candidateID(entry)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		if len(ids) == c.limit {
			break
		}
	}
	return ids, nil
}

func candidateID(entry any) string {
	switch v := entry.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if id, ok := v["id"].(string); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}
