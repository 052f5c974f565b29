// Package query implements the question-answering pipeline: translating a
// conversation into retrieval-oriented sub-queries, fetching the nearest
// index entries, and streaming a grounded, cited answer.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/rs/zerolog"

	"github.com/legaladviser/legalrag/pkg/ai"
)

// duplicateThreshold is the Jaro-Winkler similarity above which two
// sub-queries are considered restatements of each other.
const duplicateThreshold = 0.92

// TranslatedQuery is the structured translator output: non-duplicate English
// sub-queries targeting retrieval, plus the canonical English restatement of
// the user's latest intent.
type TranslatedQuery struct {
	SubQueries       []string
	OriginalQuestion string
}

// SearchText joins the canonical question and sub-queries into the single
// text the retriever embeds.
func (q TranslatedQuery) SearchText() string {
	parts := make([]string, 0, len(q.SubQueries)+1)
	if q.OriginalQuestion != "" {
		parts = append(parts, q.OriginalQuestion)
	}
	parts = append(parts, q.SubQueries...)
	return strings.Join(parts, "\n")
}

// Translator expands conversation history into a TranslatedQuery through a
// single model call.
type Translator struct {
	generator ai.Generator
	log       zerolog.Logger
}

// NewTranslator creates a query translator.
func NewTranslator(generator ai.Generator, log zerolog.Logger) *Translator {
	return &Translator{generator: generator, log: log}
}

// Translate runs the translation call and parses its output strictly. When
// the model strays from the requested JSON shape, the whole raw output
// becomes the single sub-query and the latest history entry the canonical
// question, so retrieval still proceeds.
func (t *Translator) Translate(ctx context.Context, history []string) (TranslatedQuery, error) {
	if len(history) == 0 {
		return TranslatedQuery{}, fmt.Errorf("conversation history is empty")
	}

	raw, err := t.generator.Generate(ctx, translatePrompt(history))
	if err != nil {
		return TranslatedQuery{}, fmt.Errorf("query translation failed: %w", err)
	}

	parsed, err := parseTranslated(raw)
	if err != nil {
		t.log.Warn().Err(err).Msg("translator output not parseable, falling back to raw query")
		return TranslatedQuery{
			SubQueries:       []string{strings.TrimSpace(raw)},
			OriginalQuestion: history[len(history)-1],
		}, nil
	}
	return parsed, nil
}

// translatorOutput is the JSON shape the prompt requests.
type translatorOutput struct {
	En               []string `json:"en"`
	OriginalQuestion string   `json:"originalQuestion"`
}

// parseTranslated validates and normalizes the raw translator output.
func parseTranslated(raw string) (TranslatedQuery, error) {
	var out translatorOutput
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &out); err != nil {
		return TranslatedQuery{}, fmt.Errorf("invalid translator JSON: %w", err)
	}

	out.OriginalQuestion = strings.TrimSpace(out.OriginalQuestion)
	if out.OriginalQuestion == "" {
		return TranslatedQuery{}, fmt.Errorf("translator output missing originalQuestion")
	}

	queries := dedupeQueries(out.En)
	if len(queries) == 0 {
		return TranslatedQuery{}, fmt.Errorf("translator output contains no usable sub-queries")
	}

	return TranslatedQuery{SubQueries: queries, OriginalQuestion: out.OriginalQuestion}, nil
}

// dedupeQueries drops blank sub-queries and near-duplicates of earlier kept
// ones, preserving order. Exact repeats and trivial rephrasings both trip
// the similarity threshold.
func dedupeQueries(queries []string) []string {
	kept := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		duplicate := false
		for _, prev := range kept {
			if edlib.JaroWinklerSimilarity(strings.ToLower(prev), strings.ToLower(q)) >= duplicateThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, q)
		}
	}
	return kept
}

// stripCodeFences removes a surrounding markdown code fence, which models
// routinely wrap JSON in despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// translatePrompt builds the query-structuring prompt over the joined
// conversation history, oldest first.
func translatePrompt(history []string) string {
	joined := strings.Join(history, "\n")
	return `You are a legal search expert with deep knowledge of the structure and content of various legal documents, including acts, regulations, case law, and policy texts. You are working with a vector database containing a wide range of legal documents in English. This database supports semantic search but does not perform reasoning or legal interpretation. It returns relevant document snippets based on similarity.

We receive legal questions from clients, and your task is to convert each question into a set of well-structured search queries optimized for the vector database. These queries should aim to retrieve relevant legal texts that can help answer the client's question by pointing to applicable laws or clauses.

Please follow these instructions:
1.  **Query Structuring**: Break down each question into sub-queries focused on retrieving relevant facts, clauses, or legal text references. Ensure each query is structured for semantic search performance.
2.  **Comparative Questions**: If a question involves comparison (e.g., "Compare A and B"), generate separate queries to retrieve key properties, rights, duties, or legal definitions of A and B independently.
3.  **Language Handling**:
    * If the question is in Nepali language or Nepali Romanized, translate it into English, and return the translated version in the 'originalQuestion' field.
    * If the question is already in English, include it as-is in 'originalQuestion'.
4.  **Deduplication**: Ensure that none of the generated questions are duplicates or too similar in intent.
5.  **Content Awareness**: Remember, the vector database contains only information — not interpretation or conclusions. Frame queries to retrieve relevant text, not to infer or analyze.
6.  **Output Format**: Return the queries as a JSON object with arrays for English ('en') questions, along with the 'originalQuestion' (in English). Format:
` + "```json" + `
{
  "en": ["...", "..."],
  "originalQuestion": "..."
}
` + "```" + `
7.  **Important! Calculation-focused Queries**: If the query requires calculation, formulate specific search questions designed to retrieve *all* necessary data points for performing that calculation. This includes querying for:
    * Applicable conditions and criteria
    * Rates, percentages, or fixed amounts
    * Exemptions and their requirements
    * Deductions and their rules
    * Fines, penalties, or surcharges
    * Boundaries, limits, thresholds, or caps
    * Underlying logic, formulas, or methods of calculation
    * Examples or case studies demonstrating calculation
    * Any other specific data required to perform or verify the calculation.
    It is important that if the question is in Nepali language or Nepali Romanized, translate it into English, and return the translated version in the 'originalQuestion' field before generating the calculation-focused queries.

Here are the questions:
'` + joined + `'`
}
