// Package match identifies a record from a query cover photo by comparing
// its embedding against every stored cover embedding.
package match

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"platter/internal/catalog"
	"platter/internal/config"
	"platter/internal/embedding"
	"platter/internal/logging"
)

// Candidate is one ranked match result.
type Candidate struct {
	RecordID int64
	Artist   string
	Title    string
	Score    float64
}

// Result is the outcome of one cover-match query.
type Result struct {
	// Confident is true when the best score clears the absolute threshold
	// and leads the runner-up by at least the gap threshold.
	Confident   bool
	BestID      int64
	BestScore   float64
	GapToSecond float64
	Candidates  []Candidate
}

// Index enumerates stored embeddings.
type Index interface {
	All(ctx context.Context) ([]*embedding.Embedding, error)
}

// Catalog resolves candidate record metadata.
type Catalog interface {
	GetRecords(ctx context.Context, ids []int64) (map[int64]*catalog.Record, error)
}

// Matcher scores query photos against the embedding index.
type Matcher struct {
	index   Index
	catalog Catalog
	encoder embedding.Encoder
	policy  config.Matcher
	logger  *slog.Logger
}

// New builds a Matcher with the given confidence policy.
func New(index Index, cat Catalog, encoder embedding.Encoder, policy config.Matcher, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Matcher{index: index, catalog: cat, encoder: encoder, policy: policy, logger: logger}
}

// Match embeds the query image and ranks every stored embedding by cosine
// similarity. An empty index is not an error; it simply yields no candidates.
func (m *Matcher) Match(ctx context.Context, imageData []byte) (*Result, error) {
	started := time.Now()

	query, err := m.encoder.Embed(ctx, imageData)
	if err != nil {
		return nil, err
	}

	stored, err := m.index.All(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		recordID int64
		score    float64
	}
	scores := make([]scored, 0, len(stored))
	for _, emb := range stored {
		score, err := embedding.Cosine(query, emb.Vector)
		if err != nil {
			// Dimension mismatch means the embedding predates a model
			// change; skip it rather than failing the whole query.
			m.logger.Warn("skipping incomparable embedding",
				logging.Int64(logging.FieldRecordID, emb.RecordID),
				logging.String("model_version", emb.ModelVersion),
				logging.Error(err))
			continue
		}
		scores = append(scores, scored{recordID: emb.RecordID, score: score})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].recordID < scores[j].recordID
	})

	result := &Result{}
	if len(scores) == 0 {
		return result, nil
	}

	result.BestID = scores[0].recordID
	result.BestScore = scores[0].score
	// With a single stored embedding there is no runner-up; the gap is the
	// full score.
	result.GapToSecond = scores[0].score
	if len(scores) > 1 {
		result.GapToSecond = scores[0].score - scores[1].score
	}
	result.Confident = result.BestScore >= m.policy.AbsThreshold &&
		result.GapToSecond >= m.policy.GapThreshold

	topK := m.policy.TopK
	if topK <= 0 || topK > len(scores) {
		topK = len(scores)
	}
	ids := make([]int64, 0, topK)
	for _, s := range scores[:topK] {
		ids = append(ids, s.recordID)
	}
	records, err := m.catalog.GetRecords(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, s := range scores[:topK] {
		candidate := Candidate{RecordID: s.recordID, Score: s.score}
		if record, ok := records[s.recordID]; ok {
			candidate.Artist = record.Artist
			candidate.Title = record.Title
		}
		result.Candidates = append(result.Candidates, candidate)
	}

	m.logger.Debug("cover match scored",
		logging.Int("compared", len(scores)),
		logging.Int64("best_id", result.BestID),
		logging.Float64("best_score", result.BestScore),
		logging.Bool("confident", result.Confident),
		logging.Duration("duration", time.Since(started)))
	return result, nil
}
