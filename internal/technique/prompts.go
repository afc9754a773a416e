package technique

import (
	"fmt"
	"strings"
)

// All techniques share the same answer prompt so that quality
// differences come from retrieval, not from prompt wording.
const answerSystem = "You are a careful assistant. Answer using only the provided context. " +
	"If the context does not contain the answer, say so instead of guessing."

func answerPrompt(contextText, query string) string {
	return fmt.Sprintf("CONTEXT:\n%s\n\nQUESTION: %s\n\nANSWER:", contextText, query)
}

func hypothesisPrompt(query string) string {
	return fmt.Sprintf(`QUESTION: %s

Write a detailed, specific hypothetical answer of 100-200 words.

Rules:
1. Use domain vocabulary and technical terms.
2. Be declarative; never say you do not know.
3. Write in the formal style of a document or report.

HYPOTHETICAL ANSWER:`, query)
}

func variationsPrompt(query string, n int) string {
	return fmt.Sprintf(`Generate %d different paraphrases of the following question.

ORIGINAL QUESTION: %s

Rules:
1. Keep the same meaning and intent.
2. Use different vocabulary and sentence structure.
3. Do not add new information.
4. Return only the paraphrases, one per line.

PARAPHRASES:`, n, query)
}

func decomposePrompt(query string, n int) string {
	return fmt.Sprintf(`Decompose the following complex question into at most %d simple, specific sub-questions.

COMPLEX QUESTION: %s

Rules:
1. Each sub-question focuses on one specific aspect.
2. Sub-questions are independent of each other.
3. Together they cover the whole original question.
4. Return only the sub-questions, one per line.

SUB-QUESTIONS:`, n, query)
}

func entitiesPrompt(text string) string {
	return fmt.Sprintf(`Extract the main entities (people, organizations, products, concepts) from the following text.

TEXT: %s

Rules:
1. Return only entity names, one per line.
2. No verbs or adjectives.
3. Keep full names.

ENTITIES:`, text)
}

func classifyPrompt(query string) string {
	return fmt.Sprintf(`Classify the question into exactly one category:

simple      - direct factual question ("what is", "when", "who")
complex     - multi-part question with several independent aspects
comparative - asks to compare or contrast alternatives
exploratory - conceptual or explanatory question ("how does", "why")

QUESTION: %s

Respond with a single word: simple, complex, comparative, or exploratory.

CATEGORY:`, query)
}

func agentPrompt(query string, contextText string, stepsLeft int) string {
	var b strings.Builder
	b.WriteString("You answer questions by searching a document collection.\n\n")
	if contextText != "" {
		b.WriteString("CONTEXT GATHERED SO FAR:\n")
		b.WriteString(contextText)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "QUESTION: %s\n\n", query)
	fmt.Fprintf(&b, "You may search %d more time(s).\n", stepsLeft)
	b.WriteString(`Reply with exactly one of:
SEARCH: <a focused search query>
ANSWER: <the final answer based on the context>

If the context already answers the question, reply with ANSWER.`)
	return b.String()
}

// splitLines returns the trimmed, non-empty lines of an LLM response,
// dropping list markers and heading noise.
func splitLines(response string) []string {
	var out []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789. ")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
