package evaluation

import (
	"fmt"
	"strings"
)

const judgeSystem = "You are a strict evaluation judge. You respond only with JSON."

func claimsPrompt(answer string) string {
	return fmt.Sprintf(`Break the following answer into its individual factual claims.

ANSWER: %s

Rules:
1. One claim per entry, each independently verifiable.
2. Skip filler and hedging, keep only factual statements.

Respond with a JSON array of strings, like ["claim one", "claim two"].

JSON:`, answer)
}

func verifyClaimsPrompt(claims []string, contextText string) string {
	var b strings.Builder
	b.WriteString("Decide for each claim whether it is supported by the context.\n\nCONTEXT:\n")
	b.WriteString(contextText)
	b.WriteString("\n\n")
	for i, claim := range claims {
		fmt.Fprintf(&b, "CLAIM %d: %s\n", i, claim)
	}
	b.WriteString(`
Respond with a JSON array of booleans, one per claim in order, like [true, false].

JSON:`)
	return b.String()
}

func reverseQuestionsPrompt(answer string, n int) string {
	return fmt.Sprintf(`Generate %d questions that the following answer would directly respond to.

ANSWER: %s

Respond with a JSON array of strings.

JSON:`, n, answer)
}

func questionSimilarityPrompt(original string, generated []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rate how semantically similar each question is to the original, from 0.0 to 1.0.\n\nORIGINAL QUESTION: %s\n\n", original)
	for i, q := range generated {
		fmt.Fprintf(&b, "QUESTION %d: %s\n", i, q)
	}
	b.WriteString(`
Respond with a JSON array of numbers, one per question in order, like [0.9, 0.4].

JSON:`)
	return b.String()
}

func chunkRelevancePrompt(query string, chunks []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Decide for each chunk whether it is relevant to answering the question.\n\nQUESTION: %s\n\n", query)
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "CHUNK %d:\n%s\n\n", i, chunk)
	}
	b.WriteString(`Respond with a JSON array of booleans, one per chunk in order, like [true, false].

JSON:`)
	return b.String()
}

func utilizationPrompt(answer, contextText string) string {
	return fmt.Sprintf(`Rate what fraction of the answer's information is grounded in the context, from 0.0 (none of it) to 1.0 (all of it).

CONTEXT:
%s

ANSWER: %s

Respond with a single JSON number, like 0.8.

JSON:`, contextText, answer)
}
