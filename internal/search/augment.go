package search

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/corrupt0303/listingscan/internal/model"
)

// augment fetches the detail page of every record concurrently and
// copies detail-only fields onto it.
//
// Design decision: We use errgroup.SetLimit over pre-allocated slots
// rather than a worker pool with a result channel because:
//  1. Each goroutine writes only records[i], so no lock is needed
//  2. Discovery order is kept no matter which fetch finishes first
//  3. The limit is the single throughput knob
//
// Goroutines never return errors, so one failing fetch cannot cancel its
// siblings; a failed fetch leaves ContactInfo nil.
func (s *Searcher) augment(ctx context.Context, records []model.ListingRecord) {
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(max(s.cfg.DetailConcurrency, 1))

	for i := range records {
		if !s.proxy.IsWrapped(records[i].URL) {
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			d := s.GetListingDetails(ctx, records[i].URL)
			if d.HasError() {
				s.logger.Debug("detail augmentation failed",
					"url", records[i].URL,
					"error", d.Error)
				return nil
			}
			records[i].ApplyDetail(d)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Debug("detail augmentation finished",
		"records", len(records),
		"duration", time.Since(start))
}
