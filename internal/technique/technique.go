// Package technique implements the RAG technique pipelines that the
// laboratory compares against each other.
package technique

// Technique identifiers, in their canonical presentation order.
const (
	Baseline  = "baseline"
	HyDE      = "hyde"
	Reranking = "reranking"
	Fusion    = "fusion"
	SubQuery  = "subquery"
	Graph     = "graph"
	Agentic   = "agentic"
	Adaptive  = "adaptive"
)

// descriptions maps each technique to its one-line summary, served by
// the techniques listing endpoint.
var descriptions = map[string]string{
	Baseline:  "Embed the query, search, and generate from the retrieved context.",
	HyDE:      "Search with a hypothetical answer instead of the raw query.",
	Reranking: "Over-retrieve candidates, then rerank them for precision.",
	Fusion:    "Multi-query retrieval merged with Reciprocal Rank Fusion.",
	SubQuery:  "Decompose complex questions into focused sub-queries.",
	Graph:     "Expand retrieval over an entity co-occurrence graph.",
	Agentic:   "Iterative search loop where the model decides when to answer.",
	Adaptive:  "Classify the query and dispatch to the best-fit technique.",
}

// Names returns all known technique identifiers in canonical order.
func Names() []string {
	return []string{Baseline, HyDE, Reranking, Fusion, SubQuery, Graph, Agentic, Adaptive}
}

// IsKnown reports whether name is a recognized technique identifier.
func IsKnown(name string) bool {
	_, ok := descriptions[name]
	return ok
}

// Describe returns the one-line summary for a technique, or an empty
// string for unknown identifiers.
func Describe(name string) string {
	return descriptions[name]
}
