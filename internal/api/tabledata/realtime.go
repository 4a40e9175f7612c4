package tabledata

import (
	"context"

	"github.com/FahimFBA/crowdcredit/internal/domain"
	"github.com/FahimFBA/crowdcredit/internal/logging"
	"github.com/FahimFBA/crowdcredit/internal/query"
	"github.com/FahimFBA/crowdcredit/supabase/client"
)

// WatchTables feeds realtime postgres changes on the crowdfunding and loan
// tables into tag invalidation, so listings refresh without a user action.
func WatchTables(ctx context.Context, rt *client.RealtimeClient, cache *query.Cache, log *logging.Logger) error {
	if log == nil {
		log = logging.New("realtime")
	}
	if err := rt.Connect(ctx); err != nil {
		return err
	}

	invalidate := func(tag query.Tag) client.ChangeHandler {
		return func(event client.ChangeEvent) {
			log.WithField("topic", event.Topic).Debug("table changed, invalidating")
			cache.Invalidate(tag)
		}
	}

	if err := rt.SubscribeToTable(ctx, domain.CrowdFundingTable, invalidate(query.TagCrowdFunding)); err != nil {
		return err
	}
	if err := rt.SubscribeToTable(ctx, domain.CrowdFundingContributionTable, invalidate(query.TagCrowdFunding)); err != nil {
		return err
	}
	if err := rt.SubscribeToTable(ctx, domain.LoanPostTable, invalidate(query.TagLoanPost)); err != nil {
		return err
	}
	return rt.SubscribeToTable(ctx, domain.LoanBidTable, invalidate(query.TagLoanPost))
}
