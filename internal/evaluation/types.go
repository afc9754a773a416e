// Package evaluation scores RAG answers with LLM-judged quality
// metrics in the style of RAGAS.
package evaluation

// Scores holds the judged quality of one execution. A nil field means
// the metric could not be computed for this record.
type Scores struct {
	// Faithfulness is the share of answer claims supported by the
	// retrieved context.
	Faithfulness *float64 `json:"faithfulness,omitempty"`

	// AnswerRelevancy measures how directly the answer addresses the
	// question, judged via reverse question generation.
	AnswerRelevancy *float64 `json:"answer_relevancy,omitempty"`

	// ContextPrecision is the average precision of the retrieved
	// chunks with respect to the question.
	ContextPrecision *float64 `json:"context_precision,omitempty"`

	// ContextRecall measures how much of the answer is grounded in
	// the retrieved context.
	ContextRecall *float64 `json:"context_recall,omitempty"`
}
