package registry

import "sort"

const rrfK = 60.0

// SemanticRanker ranks entries by embedding similarity to query. Registry only
// needs ranked names back; the embedding model and vector store live in
// whatever package wires a concrete implementation in.
type SemanticRanker interface {
	RankNames(query string, limit int) []string
}

// SearchHybrid fuses BM25 and semantic rankings with Reciprocal Rank Fusion
// (1/(60+rank) per list, summed per tool name). When ranker is nil or returns
// nothing, this degrades to plain BM25.
func (r *Registry) SearchHybrid(query string, limit int, ranker SemanticRanker, tracker UsageSource) []Entry {
	fetch := limit
	if fetch < 30 {
		fetch = 30
	}

	bm25 := r.Search(query, fetch, nil, tracker)
	if ranker == nil {
		if limit > 0 && len(bm25) > limit {
			bm25 = bm25[:limit]
		}
		return bm25
	}
	semanticNames := ranker.RankNames(query, fetch)
	if len(semanticNames) == 0 {
		if limit > 0 && len(bm25) > limit {
			bm25 = bm25[:limit]
		}
		return bm25
	}

	rrf := make(map[string]float64)
	for rank, e := range bm25 {
		rrf[e.Name] += 1.0 / (rrfK + float64(rank) + 1)
	}
	for rank, name := range semanticNames {
		rrf[name] += 1.0 / (rrfK + float64(rank) + 1)
	}

	type ranked struct {
		name  string
		score float64
	}
	out := make([]ranked, 0, len(rrf))
	for name, score := range rrf {
		out = append(out, ranked{name, score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].name < out[j].name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	entries := make([]Entry, 0, len(out))
	for _, item := range out {
		if e, ok := r.Get(item.name); ok {
			entries = append(entries, e)
		}
	}
	return entries
}
