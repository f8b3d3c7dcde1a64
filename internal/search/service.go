package search

import (
	"context"

	"go.uber.org/zap"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	primary  Searcher
	indexer  Indexer
	fallback Searcher
	loader   func(ctx context.Context) ([]LetterRecord, error)
	logger   *zap.Logger
}

// NewService wires the facade. meili may be nil when Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{logger: logger.Named("search")}
	if meili != nil {
		s.primary = meili
		s.indexer = meili
	}
	if pgfts != nil {
		s.fallback = pgfts
		s.loader = pgfts.LoadAllRecords
	}
	return s
}

// Search tries the primary index if healthy, otherwise falls back to PG FTS.
// Failures degrade to an empty response.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch error, falling back to pgfts", zap.Error(err))
	}
	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error("pgfts error", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexLetter indexes a letter without blocking the caller.
func (s *Service) IndexLetter(record LetterRecord) {
	if s.indexer == nil || !s.indexer.Healthy() {
		return
	}
	go func() {
		if err := s.indexer.IndexLetters([]LetterRecord{record}); err != nil {
			s.logger.Warn("index letter", zap.String("letter_id", record.ID), zap.Error(err))
		}
	}()
}

// DeleteLetter removes a letter from the index without blocking the caller.
func (s *Service) DeleteLetter(id string) {
	if s.indexer == nil || !s.indexer.Healthy() {
		return
	}
	go func() {
		if err := s.indexer.DeleteLetter(id); err != nil {
			s.logger.Warn("delete letter", zap.String("letter_id", id), zap.Error(err))
		}
	}()
}

// ReindexAllFromPG pushes every stored letter into the primary index.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.indexer == nil || !s.indexer.Healthy() || s.loader == nil {
		return
	}
	records, err := s.loader(ctx)
	if err != nil {
		s.logger.Error("reindex load failed", zap.Error(err))
		return
	}
	if err := s.indexer.IndexLetters(records); err != nil {
		s.logger.Error("reindex letters", zap.Int("count", len(records)), zap.Error(err))
		return
	}
	s.logger.Info("reindexed letters", zap.Int("count", len(records)))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
