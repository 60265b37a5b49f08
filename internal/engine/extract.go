package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/scrypster/clawscope/internal/llm"
	"github.com/scrypster/clawscope/internal/storage"
)

// Extractor turns item text into facts.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, text string) ([]storage.Fact, error)
}

// PatternExtractor finds simple "<Subject> <verb> <Object>" sentences.
type PatternExtractor struct {
	re *regexp.Regexp
}

var copulas = map[string]bool{"is": true, "are": true, "was": true}

const maxObjectWords = 8

// NewPatternExtractor compiles the sentence pattern.
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{
		re: regexp.MustCompile(`^([A-Za-z][\w'-]*(?:\s+[A-Za-z][\w'-]*){0,3}?)\s+` +
			`(?i:(works at|works on|lives in|runs on|is|are|was|uses|prefers|likes|loves|owns|manages|maintains))\s+(.+)$`),
	}
}

func (p *PatternExtractor) Name() string { return ModePattern }

var sentenceSplit = regexp.MustCompile(`[.!?\n]+(?:\s|$)`)

var leadingArticle = regexp.MustCompile(`(?i)^(a|an|the)\s+`)

// Extract never fails.
func (p *PatternExtractor) Extract(_ context.Context, text string) ([]storage.Fact, error) {
	var facts []storage.Fact
	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		m := p.re.FindStringSubmatch(sentence)
		if m == nil {
			continue
		}

		subject := leadingArticle.ReplaceAllString(strings.TrimSpace(m[1]), "")
		predicate := strings.ToLower(m[2])
		object := leadingArticle.ReplaceAllString(strings.Trim(strings.TrimSpace(m[3]), ",;:\"'"), "")
		if subject == "" || object == "" || len(strings.Fields(object)) > maxObjectWords {
			continue
		}

		confidence := 0.7
		if copulas[predicate] {
			confidence = 0.6
		}
		facts = append(facts, storage.Fact{Subject: subject, Predicate: predicate, Object: object, Confidence: confidence})
	}
	return facts, nil
}

// LLMExtractor asks a local model for triples.
type LLMExtractor struct {
	gen llm.TextGenerator
}

// NewLLMExtractor wraps gen.
func NewLLMExtractor(gen llm.TextGenerator) *LLMExtractor {
	return &LLMExtractor{gen: gen}
}

func (e *LLMExtractor) Name() string { return ModeLLM }

// Extract fails on transport errors and malformed replies.
func (e *LLMExtractor) Extract(ctx context.Context, text string) ([]storage.Fact, error) {
	reply, err := e.gen.Complete(ctx, llm.FactExtractionPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("llm extract: %w", err)
	}
	parsed, err := llm.ParseFactResponse(reply)
	if err != nil {
		return nil, fmt.Errorf("llm extract (%s): %w", e.gen.GetModel(), err)
	}
	facts := make([]storage.Fact, len(parsed))
	for i, f := range parsed {
		facts[i] = storage.Fact{Subject: f.Subject, Predicate: f.Predicate, Object: f.Object, Confidence: f.Confidence}
	}
	return facts, nil
}
