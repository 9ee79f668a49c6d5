// Package classifier assigns a bookmark to one of the configured
// categories by asking an OpenAI-compatible completion endpoint.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/HRui-wh/Bookmark-AI/internal/models"
)

var (
	// ErrRateLimited means the upstream service throttled the call. The
	// orchestrator treats this as a shared signal, not a per-record one.
	ErrRateLimited = errors.New("classification service rate limited")

	// ErrBadResponse means the model answered but not in the four-line
	// format we asked for.
	ErrBadResponse = errors.New("unparseable classifier response")

	// ErrEmptyResponse means the model returned no content at all.
	ErrEmptyResponse = errors.New("empty classifier response")
)

// InvalidLabelError is returned when the model picked a label outside
// the configured category set. It is never silently remapped.
type InvalidLabelError struct {
	Label string
}

func (e *InvalidLabelError) Error() string {
	return fmt.Sprintf("classifier returned unknown label %q", e.Label)
}

// Request is the text context assembled for one bookmark. Metadata
// fields may be empty when the fetch failed; classification still runs
// on title+URL alone.
type Request struct {
	Title       string
	URL         string
	Description string
}

// Result is a successful classification: the validated label plus the
// cleaned-up site name and short summary the model produced.
type Result struct {
	Category models.Category
	Name     string
	Summary  string
}

// Client validates model output against the configured category set.
type Client struct {
	llm         llms.Model
	categories  *models.CategorySet
	temperature float64
	maxTokens   int
}

// New creates a classifier backed by an OpenAI-compatible endpoint
// (DeepSeek in the default configuration).
func New(apiKey, baseURL, model string, categories *models.CategorySet, temperature float64, maxTokens int) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("missing api key")
	}
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}
	return NewWithModel(llm, categories, temperature, maxTokens), nil
}

// NewWithModel wires an existing llms.Model; used by tests.
func NewWithModel(llm llms.Model, categories *models.CategorySet, temperature float64, maxTokens int) *Client {
	return &Client{
		llm:         llm,
		categories:  categories,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Classify sends one completion request and parses the response into a
// Result. Error kinds: ErrRateLimited (throttled upstream),
// ErrEmptyResponse / ErrBadResponse (degenerate output),
// *InvalidLabelError (label outside the set), or the wrapped transport
// error for everything else.
func (c *Client) Classify(ctx context.Context, req Request) (Result, error) {
	prompt := c.buildPrompt(req)

	text, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		if isRateLimit(err) {
			return Result{}, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return Result{}, fmt.Errorf("classifier completion: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrEmptyResponse
	}

	return c.parseResponse(text)
}

func (c *Client) buildPrompt(req Request) string {
	labels := make([]string, 0, c.categories.Len())
	for _, l := range c.categories.Labels() {
		labels = append(labels, string(l))
	}
	categoriesStr := strings.Join(labels, ", ")

	var b strings.Builder
	b.WriteString("You are a precise website classification assistant.\n\n")
	b.WriteString("Website information:\n")
	fmt.Fprintf(&b, "- Title: %s\n", req.Title)
	fmt.Fprintf(&b, "- Description: %s\n", req.Description)
	fmt.Fprintf(&b, "- URL: %s\n\n", req.URL)
	fmt.Fprintf(&b, "Allowed categories (pick exactly one): %s\n\n", categoriesStr)
	b.WriteString("Rules:\n")
	b.WriteString("1) Site name: extract the real site name, never \"Untitled\";\n")
	b.WriteString("2) Site description: at most 50 words, focused on the main function;\n")
	b.WriteString("3) Site category: strictly one of the allowed categories above;\n")
	b.WriteString("4) Recognize well-known sites; if the title is garbled, infer from the URL.\n\n")
	b.WriteString("Answer with exactly these three lines and nothing else:\n")
	b.WriteString("Name: xxx\n")
	b.WriteString("Description: xxx\n")
	b.WriteString("Category: xxx\n")
	return b.String()
}

var (
	nameRe     = regexp.MustCompile(`(?m)^Name:\s*(.+)$`)
	descRe     = regexp.MustCompile(`(?m)^Description:\s*(.+)$`)
	categoryRe = regexp.MustCompile(`(?m)^Category:\s*(.+)$`)
)

// parseResponse extracts the three expected lines. Models sometimes wrap
// output in markdown fences; strip those first.
func (c *Client) parseResponse(text string) (Result, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	catMatch := categoryRe.FindStringSubmatch(cleaned)
	if catMatch == nil {
		return Result{}, fmt.Errorf("%w: %q", ErrBadResponse, text)
	}

	label := models.Category(strings.TrimSpace(catMatch[1]))
	if !c.categories.Contains(label) {
		return Result{}, &InvalidLabelError{Label: string(label)}
	}

	res := Result{Category: label}
	if m := nameRe.FindStringSubmatch(cleaned); m != nil {
		res.Name = strings.TrimSpace(m[1])
	}
	if m := descRe.FindStringSubmatch(cleaned); m != nil {
		res.Summary = strings.TrimSpace(m[1])
	}
	return res, nil
}

// isRateLimit sniffs transport errors for an HTTP 429. The OpenAI-style
// clients surface it only in the error text.
func isRateLimit(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit")
}
