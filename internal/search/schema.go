package search

// Mapping returns the strict index mapping: lexical fields, keyword arrays
// for entities and concepts, flattened metadata, and the nested chunk layout
// carrying one dense vector per chunk.
func Mapping(dims int) map[string]any {
	properties := map[string]any{
		"source_app":   map[string]any{"type": "keyword"},
		"entity_id":    map[string]any{"type": "keyword"},
		"status":       map[string]any{"type": "keyword"},
		"language":     map[string]any{"type": "keyword"},
		"title":        map[string]any{"type": "text", "analyzer": "standard"},
		"content":      map[string]any{"type": "text", "analyzer": "standard"},
		"summary":      map[string]any{"type": "text", "analyzer": "standard"},
		"entities":     map[string]any{"type": "keyword"},
		"key_concepts": map[string]any{"type": "keyword"},
		"metadata":     map[string]any{"type": "flattened"},
		"published_at": map[string]any{"type": "date"},
		"video": map[string]any{
			"properties": map[string]any{
				"duration":      map[string]any{"type": "float"},
				"thumbnail_url": map[string]any{"type": "keyword"},
			},
		},
		"blog": map[string]any{
			"properties": map[string]any{
				"author": map[string]any{"type": "keyword"},
				"tags":   map[string]any{"type": "keyword"},
			},
		},
		"chunks": map[string]any{
			"type": "nested",
			"properties": map[string]any{
				"text_chunk": map[string]any{"type": "text"},
				"vector": map[string]any{
					"type":       "dense_vector",
					"dims":       dims,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}
	return map[string]any{
		"dynamic":    "strict",
		"properties": properties,
	}
}

var (
	videoFields = map[string]bool{"duration": true, "thumbnail_url": true}
	blogFields  = map[string]bool{"author": true, "tags": true}
	baseFields  = map[string]bool{
		"source_app": true, "entity_id": true, "status": true,
		"language": true, "published_at": true,
	}
)

// MapFilterField aliases a caller-supplied filter name to its typed path:
// per-entity custom fields live under video.* / blog.*, unknown names under
// metadata.*.
func MapFilterField(name string) string {
	switch {
	case baseFields[name]:
		return name
	case videoFields[name]:
		return "video." + name
	case blogFields[name]:
		return "blog." + name
	default:
		return "metadata." + name
	}
}
