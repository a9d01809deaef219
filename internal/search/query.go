package search

// BuildQuery composes the hybrid retrieval body: a boolean OR of a title
// phrase bonus, the lexical multi-match, an entity terms boost, the nested
// chunk clause (phrase + kNN) and a language affinity term, hard-filtered to
// ready documents. Sort mode changes the wrapper, never the signals.
func BuildQuery(p QueryParams) map[string]any {
	filterClauses := []any{
		map[string]any{"term": map[string]any{"status": StatusReady}},
	}
	for k, v := range p.Filters {
		filterClauses = append(filterClauses, map[string]any{
			"term": map[string]any{MapFilterField(k): v},
		})
	}

	shouldClauses := []any{
		map[string]any{
			"constant_score": map[string]any{
				"filter": map[string]any{"match_phrase": map[string]any{"title": p.QueryText}},
				"boost":  50.0,
				"_name":  "title_proximity_bonus",
			},
		},
		map[string]any{
			"multi_match": map[string]any{
				"_name":    "lexical_base",
				"query":    p.QueryText,
				"fields":   []string{"title^2", "summary^1.5", "content"},
				"type":     "most_fields",
				"operator": "and",
				"boost":    2.0,
			},
		},
	}

	if len(p.Entities) > 0 {
		shouldClauses = append(shouldClauses, map[string]any{
			"terms": map[string]any{
				"entities": p.Entities,
				"boost":    20.0,
				"_name":    "entity_match",
			},
		})
	}

	chunkShould := []any{
		map[string]any{
			"constant_score": map[string]any{
				"filter": map[string]any{"match_phrase": map[string]any{"chunks.text_chunk": p.QueryText}},
				"boost":  15.0,
				"_name":  "chunk_proximity_bonus",
			},
		},
	}
	if p.UseHybrid && len(p.Vector) > 0 {
		k := p.Limit * 5
		numCandidates := 100
		if k > numCandidates {
			numCandidates = k
		}
		chunkShould = append(chunkShould, map[string]any{
			"knn": map[string]any{
				"_name":          "chunk_semantic",
				"field":          "chunks.vector",
				"query_vector":   p.Vector,
				"k":              k,
				"num_candidates": numCandidates,
				"similarity":     p.VectorThreshold,
				"boost":          25.0,
			},
		})
	}

	nested := map[string]any{
		"path":       "chunks",
		"score_mode": "max",
		"query": map[string]any{
			"bool": map[string]any{
				"should":               chunkShould,
				"minimum_should_match": 1,
			},
		},
		"boost": 1.0,
	}
	if p.ReturnChunks {
		nested["inner_hits"] = map[string]any{
			"name":    "matched_chunks",
			"size":    1,
			"_source": []string{"chunks.text_chunk"},
		}
	}
	shouldClauses = append(shouldClauses, map[string]any{"nested": nested})

	if p.QueryLanguage != "" {
		shouldClauses = append(shouldClauses, map[string]any{
			"term": map[string]any{
				"language": map[string]any{
					"value": p.QueryLanguage,
					"boost": 10.0,
				},
			},
		})
	}

	boolQuery := map[string]any{
		"bool": map[string]any{
			"should":               shouldClauses,
			"minimum_should_match": 1,
			"filter":               filterClauses,
		},
	}

	body := map[string]any{
		"size": p.Limit,
		"_source": map[string]any{
			"includes": []string{
				"title", "summary", "content", "metadata", "entity_id", "source_app",
				"entities", "key_concepts", "language", "chunks.text_chunk",
			},
		},
	}

	switch p.SortBy {
	case SortRecency:
		// Recency ignores min_score and orders purely by publish date.
		body["query"] = boolQuery
		body["sort"] = []any{
			map[string]any{"published_at": map[string]any{"order": "desc", "missing": "_last"}},
		}
	case SortBalanced:
		body["query"] = map[string]any{
			"function_score": map[string]any{
				"query": boolQuery,
				"functions": []any{
					map[string]any{
						"exp": map[string]any{
							"published_at": map[string]any{
								"origin": "now",
								"scale":  "7d",
								"decay":  0.5,
							},
						},
						"weight": 15,
					},
				},
				"score_mode": "sum",
				"boost_mode": "sum",
			},
		}
	default:
		body["query"] = boolQuery
		if p.MinScore > 0 {
			body["min_score"] = p.MinScore
		}
	}

	return body
}
