package technique

import (
	"context"
	"sort"
	"strings"

	"github.com/raglab/raglab/internal/llm"
	"github.com/raglab/raglab/internal/qdrant"
	"github.com/raglab/raglab/internal/recorder"
)

// runBaseline is the traditional embed, search, generate pipeline.
// Every other technique is measured against it.
func (r *Runner) runBaseline(ctx context.Context, query string, opts Options, out *Outcome) error {
	results, err := r.retrieve(ctx, query, opts.TopK)
	if err != nil {
		return err
	}

	out.Sources = toSources(results)
	out.ChunksRetrieved = len(results)
	return r.answer(ctx, out, query, opts)
}

// runHyDE searches with a hypothetical answer instead of the query.
// Answers are stylistically closer to documents than questions, so the
// hypothesis embedding lands nearer the relevant chunks.
func (r *Runner) runHyDE(ctx context.Context, query string, opts Options, out *Outcome) error {
	temperature := float32(0.7)
	hypothesis, err := r.generate(ctx, out, llm.GenerateRequest{
		Prompt:          hypothesisPrompt(query),
		Temperature:     &temperature,
		MaxOutputTokens: 256,
	})
	if err != nil {
		return err
	}

	// A degenerate hypothesis would only hurt retrieval.
	if len(hypothesis) < 20 {
		hypothesis = query
	}
	out.Details["hypothesis"] = hypothesis

	results, err := r.retrieve(ctx, hypothesis, opts.TopK)
	if err != nil {
		return err
	}

	out.Sources = toSources(results)
	out.ChunksRetrieved = len(results)

	// The final answer uses the original question, not the hypothesis.
	return r.answer(ctx, out, query, opts)
}

// runReranking over-retrieves candidates with the fast bi-encoder
// search, then reranks them for precision. Sources carry both the
// original similarity score and the rerank score.
func (r *Runner) runReranking(ctx context.Context, query string, opts Options, out *Outcome) error {
	candidates, err := r.retrieve(ctx, query, opts.TopK*r.cfg.RerankMultiplier)
	if err != nil {
		return err
	}
	out.ChunksRetrieved = len(candidates)

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Payload.Content
	}

	scored, usage, err := r.reranker.Rerank(ctx, query, documents, opts.TopK)
	out.Usage.Add(usage)
	if err != nil {
		// Degrade to plain retrieval order rather than failing the run.
		r.log.Warn("rerank failed, keeping retrieval order", "error", err)
		if len(candidates) > opts.TopK {
			candidates = candidates[:opts.TopK]
		}
		out.Sources = toSources(candidates)
		out.Details["rerank_degraded"] = true
		return r.answer(ctx, out, query, opts)
	}

	sources := make([]recorder.Source, 0, len(scored))
	for _, s := range scored {
		c := candidates[s.Index]
		sources = append(sources, recorder.Source{
			Content:       c.Payload.Content,
			Score:         s.Score,
			Document:      c.Payload.Document,
			ChunkIndex:    c.Payload.ChunkIndex,
			OriginalScore: recorder.Float64Ptr(float64(c.Score)),
		})
	}
	out.Sources = sources
	return r.answer(ctx, out, query, opts)
}

// runFusion retrieves with several paraphrases of the query and merges
// the ranked lists with Reciprocal Rank Fusion. Paraphrases capture
// aspects a single phrasing would miss.
func (r *Runner) runFusion(ctx context.Context, query string, opts Options, out *Outcome) error {
	temperature := float32(0.8)
	response, err := r.generate(ctx, out, llm.GenerateRequest{
		Prompt:          variationsPrompt(query, r.cfg.FusionVariations-1),
		Temperature:     &temperature,
		MaxOutputTokens: 256,
	})
	if err != nil {
		return err
	}

	variations := splitLines(response)
	if len(variations) > r.cfg.FusionVariations-1 {
		variations = variations[:r.cfg.FusionVariations-1]
	}
	queries := append([]string{query}, variations...)
	out.Details["query_variations"] = queries

	lists := make([][]qdrant.SearchResult, 0, len(queries))
	total := 0
	for _, q := range queries {
		results, err := r.retrieve(ctx, q, opts.TopK*2)
		if err != nil {
			return err
		}
		lists = append(lists, results)
		total += len(results)
	}
	out.ChunksRetrieved = total

	fused := fuseRanked(lists, rrfK, opts.TopK)
	sources := make([]recorder.Source, 0, len(fused))
	for _, f := range fused {
		source := recorder.Source{
			Content:    f.result.Payload.Content,
			Score:      f.score,
			Document:   f.result.Payload.Document,
			ChunkIndex: f.result.Payload.ChunkIndex,
		}
		if len(f.originals) > 0 {
			source.OriginalScore = recorder.Float64Ptr(float64(f.originals[0]))
		}
		sources = append(sources, source)
	}
	out.Sources = sources
	return r.answer(ctx, out, query, opts)
}

// runSubQuery decomposes a complex question into focused sub-questions,
// searches each independently, and answers from the deduplicated union.
func (r *Runner) runSubQuery(ctx context.Context, query string, opts Options, out *Outcome) error {
	temperature := float32(0.5)
	response, err := r.generate(ctx, out, llm.GenerateRequest{
		Prompt:          decomposePrompt(query, r.cfg.MaxSubQueries),
		Temperature:     &temperature,
		MaxOutputTokens: 256,
	})
	if err != nil {
		return err
	}

	subqueries := splitLines(response)
	if len(subqueries) > r.cfg.MaxSubQueries {
		subqueries = subqueries[:r.cfg.MaxSubQueries]
	}
	if len(subqueries) <= 1 {
		subqueries = []string{query}
	}
	out.Details["subqueries"] = subqueries

	var all []qdrant.SearchResult
	for _, sq := range subqueries {
		results, err := r.retrieve(ctx, sq, opts.TopK)
		if err != nil {
			return err
		}
		all = append(all, results...)
	}
	out.ChunksRetrieved = len(all)

	unique := dedupeByID(all)
	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Score > unique[j].Score
	})
	if len(unique) > opts.TopK {
		unique = unique[:opts.TopK]
	}

	out.Sources = toSources(unique)
	return r.answer(ctx, out, query, opts)
}

// runGraph boosts chunks that share entities with the query. Entities
// are extracted from the query and the top retrieved chunks, expanded
// one hop over a co-occurrence graph, and used to re-score results.
func (r *Runner) runGraph(ctx context.Context, query string, opts Options, out *Outcome) error {
	queryEntities, err := r.extractEntities(ctx, out, query)
	if err != nil {
		return err
	}
	out.Details["query_entities"] = queryEntities

	initial, err := r.retrieve(ctx, query, opts.TopK*2)
	if err != nil {
		return err
	}
	out.ChunksRetrieved = len(initial)

	// Co-occurrence edges come from the top chunks only; extraction is
	// one generation call per chunk.
	graphDocs := initial
	if len(graphDocs) > 5 {
		graphDocs = graphDocs[:5]
	}
	var edges [][2]string
	for _, doc := range graphDocs {
		entities, err := r.extractEntities(ctx, out, doc.Payload.Content)
		if err != nil {
			return err
		}
		for i, e1 := range entities {
			for _, e2 := range entities[i+1:] {
				edges = append(edges, [2]string{e1, e2})
			}
		}
	}

	expanded := expandEntities(queryEntities, edges, 1)
	out.Details["expanded_entities"] = setToSlice(expanded)

	// Boost by entity overlap, then keep the best.
	type scoredChunk struct {
		result qdrant.SearchResult
		score  float64
	}
	scored := make([]scoredChunk, 0, len(initial))
	for _, result := range initial {
		content := strings.ToLower(result.Payload.Content)
		matches := 0
		for entity := range expanded {
			if strings.Contains(content, strings.ToLower(entity)) {
				matches++
			}
		}
		scored = append(scored, scoredChunk{
			result: result,
			score:  float64(result.Score) * (1 + 0.1*float64(matches)),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > opts.TopK {
		scored = scored[:opts.TopK]
	}

	sources := make([]recorder.Source, 0, len(scored))
	for _, s := range scored {
		sources = append(sources, recorder.Source{
			Content:       s.result.Payload.Content,
			Score:         s.score,
			Document:      s.result.Payload.Document,
			ChunkIndex:    s.result.Payload.ChunkIndex,
			OriginalScore: recorder.Float64Ptr(float64(s.result.Score)),
		})
	}
	out.Sources = sources
	return r.answer(ctx, out, query, opts)
}

// runAgentic lets the model drive retrieval: at each step it either
// issues another search or commits to an answer, bounded by the
// configured step limit.
func (r *Runner) runAgentic(ctx context.Context, query string, opts Options, out *Outcome) error {
	var gathered []qdrant.SearchResult
	seen := make(map[string]bool)
	searches := 0

	for step := 0; step < r.cfg.MaxAgentSteps; step++ {
		response, err := r.generate(ctx, out, llm.GenerateRequest{
			Prompt:          agentPrompt(query, buildContext(toSources(gathered)), r.cfg.MaxAgentSteps-step),
			MaxOutputTokens: opts.MaxOutputTokens,
		})
		if err != nil {
			return err
		}

		if answer, ok := cutDirective(response, "ANSWER:"); ok {
			out.Answer = answer
			out.Sources = toSources(gathered)
			out.ChunksRetrieved = len(gathered)
			out.Details["agent_searches"] = searches
			out.Details["agent_steps"] = step + 1
			return nil
		}

		searchQuery := query
		if q, ok := cutDirective(response, "SEARCH:"); ok && q != "" {
			searchQuery = q
		}

		results, err := r.retrieve(ctx, searchQuery, opts.TopK)
		if err != nil {
			return err
		}
		searches++
		for _, result := range results {
			if !seen[result.ID] {
				seen[result.ID] = true
				gathered = append(gathered, result)
			}
		}
	}

	// Step budget exhausted: answer from whatever was gathered.
	out.Sources = toSources(gathered)
	out.ChunksRetrieved = len(gathered)
	out.Details["agent_searches"] = searches
	out.Details["agent_steps"] = r.cfg.MaxAgentSteps
	return r.answer(ctx, out, query, opts)
}

// adaptiveRouting maps query categories to the technique best suited
// for them.
var adaptiveRouting = map[string]string{
	"simple":      Baseline,
	"complex":     SubQuery,
	"comparative": Fusion,
	"exploratory": HyDE,
}

// runAdaptive classifies the query and dispatches to the selected
// pipeline. Misclassification falls back to baseline.
func (r *Runner) runAdaptive(ctx context.Context, query string, opts Options, out *Outcome) error {
	temperature := float32(0.0)
	response, err := r.generate(ctx, out, llm.GenerateRequest{
		Prompt:          classifyPrompt(query),
		Temperature:     &temperature,
		MaxOutputTokens: 16,
	})
	if err != nil {
		return err
	}

	category := normalizeCategory(response)
	selected, ok := adaptiveRouting[category]
	if !ok {
		category, selected = "simple", Baseline
	}
	out.Details["query_type"] = category
	out.Details["technique_selected"] = selected

	switch selected {
	case SubQuery:
		return r.runSubQuery(ctx, query, opts, out)
	case Fusion:
		return r.runFusion(ctx, query, opts, out)
	case HyDE:
		return r.runHyDE(ctx, query, opts, out)
	default:
		return r.runBaseline(ctx, query, opts, out)
	}
}

// extractEntities pulls entity names from text, capped at ten.
func (r *Runner) extractEntities(ctx context.Context, out *Outcome, text string) ([]string, error) {
	temperature := float32(0.3)
	response, err := r.generate(ctx, out, llm.GenerateRequest{
		Prompt:          entitiesPrompt(text),
		Temperature:     &temperature,
		MaxOutputTokens: 160,
	})
	if err != nil {
		return nil, err
	}

	var entities []string
	for _, line := range splitLines(response) {
		if len(line) > 2 {
			entities = append(entities, line)
		}
	}
	if len(entities) > 10 {
		entities = entities[:10]
	}
	return entities, nil
}

// expandEntities grows the seed set over co-occurrence edges for the
// given number of hops.
func expandEntities(seeds []string, edges [][2]string, hops int) map[string]bool {
	expanded := make(map[string]bool, len(seeds))
	current := make(map[string]bool, len(seeds))
	for _, s := range seeds {
		expanded[s] = true
		current[s] = true
	}

	for i := 0; i < hops; i++ {
		next := make(map[string]bool)
		for _, edge := range edges {
			if current[edge[0]] && !expanded[edge[1]] {
				next[edge[1]] = true
			}
			if current[edge[1]] && !expanded[edge[0]] {
				next[edge[0]] = true
			}
		}
		for e := range next {
			expanded[e] = true
		}
		current = next
	}
	return expanded
}

func setToSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// dedupeByID removes duplicate chunks, keeping the highest score seen.
func dedupeByID(results []qdrant.SearchResult) []qdrant.SearchResult {
	best := make(map[string]qdrant.SearchResult, len(results))
	var order []string
	for _, r := range results {
		existing, ok := best[r.ID]
		if !ok {
			order = append(order, r.ID)
			best[r.ID] = r
		} else if r.Score > existing.Score {
			best[r.ID] = r
		}
	}

	out := make([]qdrant.SearchResult, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}

// cutDirective extracts the payload after a directive prefix, matching
// anywhere in the response to tolerate leading prose.
func cutDirective(response, directive string) (string, bool) {
	idx := strings.Index(response, directive)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(response[idx+len(directive):]), true
}

// normalizeCategory reduces a classification response to a bare
// category word.
func normalizeCategory(response string) string {
	response = strings.ToLower(strings.TrimSpace(response))
	fields := strings.Fields(response)
	if len(fields) > 0 {
		response = fields[0]
	}
	var b strings.Builder
	for _, r := range response {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	word := b.String()
	if _, ok := adaptiveRouting[word]; ok {
		return word
	}
	for category := range adaptiveRouting {
		if strings.Contains(word, category) {
			return category
		}
	}
	return word
}
