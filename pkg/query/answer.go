package query

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/legaladviser/legalrag/pkg/ai"
)

// RefusalSentence is returned verbatim by the model when the retrieved
// passages contain no direct answer. The prompt requires it word for word so
// clients can recognize an honest refusal.
const RefusalSentence = "Based on the provided legal references, I could not find a direct answer to your query. You may need to consult a legal expert or refer to additional legal sources."

// AnswerGenerator builds the grounded answer prompt and streams the model's
// response fragment by fragment.
type AnswerGenerator struct {
	generator ai.StreamGenerator
}

// NewAnswerGenerator creates an answer generator.
func NewAnswerGenerator(generator ai.StreamGenerator) *AnswerGenerator {
	return &AnswerGenerator{generator: generator}
}

// Stream produces the answer to the user's latest raw question, grounded
// strictly in the retrieved passages. The sequence ends after the final
// fragment or a non-nil error.
func (a *AnswerGenerator) Stream(ctx context.Context, question string, passages []Passage) iter.Seq2[string, error] {
	return a.generator.GenerateStream(ctx, answerPrompt(question, passages))
}

// answerPrompt instructs the model to answer exclusively from the provided
// passages, cite every source, keep calculations to rough estimates derived
// from extracted figures, mirror the user's script, and fall back to the
// fixed refusal sentence when the passages don't answer the question.
func answerPrompt(question string, passages []Passage) string {
	var refs strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&refs, "[Reference %d] (id: %s, score: %.4f)\n%s\n\n", i+1, p.ID, p.Score, p.Text)
	}

	return fmt.Sprintf(`### User Query:
'%s'

### **Your Task:**

1.  **Analyze the Query:** Understand the core legal question the user is asking. Prioritize the primary question.
2.  **Extract Relevant Information:** Find and extract *all* applicable legal provisions, definitions, rules, rates, conditions, thresholds, formulas, exemptions, deductions, fines, penalties, boundaries, logic, and any other numerical or procedural data directly and exclusively from the provided references that are relevant to the user's query.
3.  **Formulate the Response:**
    * Provide a precise, factually correct, and complete answer to the user's query, based *strictly* on the extracted legal information.
    * Ensure the response directly addresses the user's main question.
    * When a query term is ambiguous (e.g. insurance can mean life, health or car insurance; tax can mean Value Added Tax, Income Tax or Excise Duty), state the exact meaning used in the context.
    * Include only the details the primary question requires and keep the response short where possible.

4.  **Handle Calculations:**
    * **If the user's query requires a calculation** (e.g. tax, fine, compensation amount, deadline), analyze the provided references for all necessary components: applicable rules, rates, formulas, thresholds, conditions, exemptions, deductions, and any specific numerical data.
    * Derive the calculation steps only from rates and logic explicitly present *within the provided references*. If the user supplies specific numerical values, combine them only with rules found in the references.
    * Perform a **rough calculation estimate** based *only* on the extracted data and logic.
    * **Do not hallucinate any numbers or data points for the calculation.**
    * **Always include a prominent disclaimer** stating that the calculation is a rough estimate based only on the information available in the provided documents and that a legal professional should be consulted for precise figures.
5.  **Cite Legal References:** Clearly cite all legal sources used, including specific articles, sections, rules, or case details. Use the format:
    **[Law/Act Name], [Article/Section/Rule Number or Case Details]**
    List all references at the end:
    **References:**
    - **[Act Name], Article [X]**
    - **[Case Name], Judgment [Date]**
    - **[Regulation Name], Section [Y]**
    - **[Constitution], Article [Z]**
    (Adjust format based on the citation details available in the text)

### **Constraints & Important Notes:**

* **Strict Adherence to Text:** Your entire response, including any calculations or interpretations, must be based *solely* on the provided references. Do not introduce external information, personal opinions, or general knowledge of Nepali law not present in the text.
* **Legal Accuracy:** Ensure all statements are legally accurate according to the specific provisions in the provided texts.
* **No Hallucinations:** Never invent legal provisions, facts, numbers, rates, thresholds, or calculation logic.
* **Safety:** Filter out and avoid generating any vulgar, abusive, harassing, racially sensitive, discriminatory, hateful, unjust, misleading, bullying, or teasing content.
* **Language:** Answer in the same script and register as the user's query; if the query is in Romanized Nepali script, answer in written Romanized Nepali script.
* **If No Answer Found:** If the provided legal references do not contain a direct answer to the user's query, respond *only* with:
    "%s"
* **No Examples (Unless Asked):** Do not provide hypothetical examples or scenarios unless the user explicitly requests one to clarify a concept *based on the provisions found in the provided text*.

### Provided Legal References:
%s`, question, RefusalSentence, refs.String())
}
