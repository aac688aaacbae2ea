package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pauljones0/fly4deals/internal/models"
	"github.com/pauljones0/fly4deals/internal/validator"
)

// ErrEmptyReply is returned by ParseDeal when the reply holds no JSON object.
var ErrEmptyReply = errors.New("empty extraction reply")

type Status int

const (
	StatusOK Status = iota
	StatusParseFailure
	StatusServiceFailure
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusParseFailure:
		return "parse_failure"
	case StatusServiceFailure:
		return "service_failure"
	default:
		return "unknown"
	}
}

// Result is the outcome of extracting one post. Deal is set only when
// Status is StatusOK; Err is set otherwise.
type Result struct {
	Status Status
	Deal   *models.Deal
	Err    error
}

func (r Result) OK() bool {
	return r.Status == StatusOK
}

type Extractor struct {
	generator Generator
	prompt    Prompt
	imageRoot string
}

func NewExtractor(g Generator, prompt Prompt, imageRoot string) *Extractor {
	return &Extractor{generator: g, prompt: prompt, imageRoot: imageRoot}
}

// Extract runs one extraction request for record. It never panics or
// returns an error; failures are reported through the Result.
func (e *Extractor) Extract(ctx context.Context, record models.PostRecord) Result {
	req := BuildRequest(e.prompt, record, e.imageRoot)

	reply, err := e.generator.Generate(ctx, req)
	if err != nil {
		slog.Error("Extraction service failed", "post", record.URL, "error", err)
		return Result{Status: StatusServiceFailure, Err: err}
	}

	deal, err := ParseDeal(reply)
	if err != nil {
		slog.Warn("Could not parse extraction reply", "post", record.URL, "error", err)
		return Result{Status: StatusParseFailure, Err: err}
	}

	slog.Info("Extracted deal", "post", record.URL, "from", deal.From, "to", deal.To, "price", deal.Price)
	return Result{Status: StatusOK, Deal: deal}
}

var dealValidator = validator.New()

// flexString accepts a JSON string or number; models sometimes answer
// "price": 1500 despite the schema.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

type rawDeal struct {
	Airlines []string   `json:"airlines"`
	From     string     `json:"from"`
	To       string     `json:"to"`
	Price    flexString `json:"price"`
	When     string     `json:"when"`
}

// ParseDeal decodes a model reply into a Deal. Markdown code fences are
// removed first; if the remainder still is not JSON, the outermost {...}
// span is tried. Replies missing from, to or price are rejected.
func ParseDeal(reply string) (*models.Deal, error) {
	jsonStr := strings.ReplaceAll(reply, "```json", "")
	jsonStr = strings.ReplaceAll(jsonStr, "```", "")
	jsonStr = strings.TrimSpace(jsonStr)
	if jsonStr == "" {
		return nil, ErrEmptyReply
	}

	var raw rawDeal
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		start, end := strings.Index(jsonStr, "{"), strings.LastIndex(jsonStr, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("failed to parse extraction reply: %w", err)
		}
		if err := json.Unmarshal([]byte(jsonStr[start:end+1]), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse extraction reply: %w", err)
		}
	}

	deal := &models.Deal{
		Airlines: raw.Airlines,
		From:     strings.TrimSpace(raw.From),
		To:       strings.TrimSpace(raw.To),
		Price:    strings.TrimSpace(string(raw.Price)),
		When:     strings.TrimSpace(raw.When),
	}
	if err := dealValidator.Deal(*deal); err != nil {
		return nil, fmt.Errorf("incomplete extraction reply: %w", err)
	}
	return deal, nil
}
