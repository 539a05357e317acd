package knowledge

import (
	"context"
	"sort"

	"github.com/shibuya/kanshi/internal/models"
	"github.com/shibuya/kanshi/internal/vector"
)

// Search result clamps.
const (
	SearchDefaultTopK = 5
	SearchMaxTopK     = 20
)

// Search embeds the query and ranks every ready chunk by cosine similarity.
// topK is clamped to [1, 20] with a default of 5. An empty knowledge base
// returns no results without embedding the query.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]models.KnowledgeSearchResult, error) {
	if topK <= 0 {
		topK = SearchDefaultTopK
	}
	if topK > SearchMaxTopK {
		topK = SearchMaxTopK
	}

	chunks, err := s.store.ReadyChunks(ctx)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	queryEmb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results := make([]models.KnowledgeSearchResult, 0, len(chunks))
	for _, rc := range chunks {
		results = append(results, models.KnowledgeSearchResult{
			ChunkID:    rc.Chunk.ID,
			Text:       rc.Chunk.Text,
			DocID:      rc.Chunk.DocID,
			DocTitle:   rc.DocTitle,
			DocSource:  rc.DocSource,
			IngestedAt: rc.IngestedAt,
			Score:      vector.CosineSimilarity(queryEmb, rc.Chunk.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
