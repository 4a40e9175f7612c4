// Package tabledata is the endpoint group for crowdfunding and loan tables:
// CRUD plus relational-join reads, registered against the query cache with
// the tags each operation provides or invalidates.
package tabledata

import (
	"context"
	"errors"
	"fmt"

	"github.com/FahimFBA/crowdcredit/internal/domain"
	"github.com/FahimFBA/crowdcredit/internal/query"
	"github.com/FahimFBA/crowdcredit/supabase/client"
)

// Endpoint names, used as cache keys and lifecycle event sources.
const (
	EndpointGetAllCrowdFunding = "tableData/getAllCrowdFundingProjects"
	EndpointGetOneCrowdFunding = "tableData/getOneCrowdFundingProject"
	EndpointCreateCrowdFunding = "tableData/createCrowdFundingProject"
	EndpointUpdateCrowdFunding = "tableData/updateCrowdFundingProject"
	EndpointDeleteCrowdFunding = "tableData/deleteCrowdFundingProject"
	EndpointContribute         = "tableData/contributeToCrowdFundingProject"
	EndpointGetAllLoanPosts    = "tableData/getAllLoanPosts"
	EndpointGetOneLoanPost     = "tableData/getOneLoanPost"
	EndpointCreateLoanPost     = "tableData/createLoanPost"
	EndpointUpdateLoanPost     = "tableData/updateLoanPost"
	EndpointDeleteLoanPost     = "tableData/deleteLoanPost"
	EndpointBidOneLoanPost     = "tableData/bidOneLoanPost"
)

const contributionsJoin = "*, contributions:crowd_funding_contributions(*)"
const biddersJoin = "*, bidders:loan_table_bidders(*)"

// ErrNotOwner is returned when a delete's id and creator_id filters matched
// no row; the row, if any, is left untouched.
var ErrNotOwner = errors.New("post not found or not owned by caller")

// Service exposes the table endpoints.
type Service struct {
	db    *client.Client
	cache *query.Cache
}

// NewService creates the endpoint group.
func NewService(db *client.Client, cache *query.Cache) *Service {
	return &Service{db: db, cache: cache}
}

// GetAllCrowdFundingProjects lists every campaign joined with its
// contributions. Provides the CrowdFunding tag.
func (s *Service) GetAllCrowdFundingProjects(ctx context.Context) ([]domain.CrowdFundingPost, error) {
	key := query.Key(EndpointGetAllCrowdFunding, nil)
	return query.FetchAs(ctx, s.cache, key, []query.Tag{query.TagCrowdFunding},
		func(ctx context.Context) ([]domain.CrowdFundingPost, error) {
			var posts []domain.CrowdFundingPost
			err := s.db.From(domain.CrowdFundingTable).
				Select(contributionsJoin).
				Get(ctx, &posts)
			if err != nil {
				return nil, err
			}
			if posts == nil {
				posts = []domain.CrowdFundingPost{}
			}
			return posts, nil
		})
}

// GetOneCrowdFundingProject reads a single campaign with its contributions.
func (s *Service) GetOneCrowdFundingProject(ctx context.Context, id string) (domain.CrowdFundingPost, error) {
	key := query.Key(EndpointGetOneCrowdFunding, map[string]string{"id": id})
	return query.FetchAs(ctx, s.cache, key, nil,
		func(ctx context.Context) (domain.CrowdFundingPost, error) {
			var post domain.CrowdFundingPost
			err := s.db.From(domain.CrowdFundingTable).
				Select(contributionsJoin).
				Eq("id", id).
				Single().
				Get(ctx, &post)
			return post, err
		})
}

// CreateCrowdFundingProject inserts a campaign and invalidates the listing.
func (s *Service) CreateCrowdFundingProject(ctx context.Context, post domain.CrowdFundingPost) error {
	_, err := s.cache.Run(ctx, query.Mutation{
		Endpoint:    EndpointCreateCrowdFunding,
		Invalidates: []query.Tag{query.TagCrowdFunding},
	}, func(ctx context.Context) (any, error) {
		return nil, s.db.From(domain.CrowdFundingTable).Insert(ctx, post)
	})
	return err
}

// UpdateCrowdFundingProject patches a campaign by primary key.
func (s *Service) UpdateCrowdFundingProject(ctx context.Context, post domain.CrowdFundingPost) error {
	if post.ID == "" {
		return fmt.Errorf("update crowdfunding project: missing id")
	}
	_, err := s.cache.Run(ctx, query.Mutation{
		Endpoint:    EndpointUpdateCrowdFunding,
		Invalidates: []query.Tag{query.TagCrowdFunding},
	}, func(ctx context.Context) (any, error) {
		_, err := s.db.From(domain.CrowdFundingTable).
			Eq("id", post.ID).
			Update(ctx, post)
		return nil, err
	})
	return err
}

// DeleteCrowdFundingProject removes a campaign. Both id and creator_id must
// match an existing row; otherwise nothing is deleted and ErrNotOwner is
// returned.
func (s *Service) DeleteCrowdFundingProject(ctx context.Context, id, creatorID string) error {
	_, err := s.cache.Run(ctx, query.Mutation{
		Endpoint:    EndpointDeleteCrowdFunding,
		Invalidates: []query.Tag{query.TagCrowdFunding},
	}, func(ctx context.Context) (any, error) {
		n, err := s.db.From(domain.CrowdFundingTable).
			Eq("id", id).
			Eq("creator_id", creatorID).
			Delete(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrNotOwner
		}
		return nil, nil
	})
	return err
}

// ContributeToCrowdFundingProject appends a contribution row.
func (s *Service) ContributeToCrowdFundingProject(ctx context.Context, c domain.Contribution) error {
	_, err := s.cache.Run(ctx, query.Mutation{
		Endpoint:    EndpointContribute,
		Invalidates: []query.Tag{query.TagCrowdFunding},
	}, func(ctx context.Context) (any, error) {
		rows := []map[string]any{{
			"crowd_funding_post_id": c.CrowdFundingPostID,
			"contributor_id":        c.ContributorID,
			"amount":                c.Amount,
		}}
		return nil, s.db.From(domain.CrowdFundingContributionTable).Insert(ctx, rows)
	})
	return err
}

// GetAllLoanPosts lists every loan post. Provides the LoanPost tag.
func (s *Service) GetAllLoanPosts(ctx context.Context) ([]domain.LoanPost, error) {
	key := query.Key(EndpointGetAllLoanPosts, nil)
	return query.FetchAs(ctx, s.cache, key, []query.Tag{query.TagLoanPost},
		func(ctx context.Context) ([]domain.LoanPost, error) {
			var posts []domain.LoanPost
			err := s.db.From(domain.LoanPostTable).Select("*").Get(ctx, &posts)
			if err != nil {
				return nil, err
			}
			if posts == nil {
				posts = []domain.LoanPost{}
			}
			return posts, nil
		})
}

// GetOneLoanPost reads a single loan post joined with its bidders.
func (s *Service) GetOneLoanPost(ctx context.Context, id string) (domain.LoanPost, error) {
	key := query.Key(EndpointGetOneLoanPost, map[string]string{"id": id})
	return query.FetchAs(ctx, s.cache, key, nil,
		func(ctx context.Context) (domain.LoanPost, error) {
			var post domain.LoanPost
			err := s.db.From(domain.LoanPostTable).
				Select(biddersJoin).
				Eq("id", id).
				Single().
				Get(ctx, &post)
			return post, err
		})
}

// CreateLoanPost inserts a loan post and invalidates the listing.
func (s *Service) CreateLoanPost(ctx context.Context, post domain.LoanPost) error {
	_, err := s.cache.Run(ctx, query.Mutation{
		Endpoint:    EndpointCreateLoanPost,
		Invalidates: []query.Tag{query.TagLoanPost},
	}, func(ctx context.Context) (any, error) {
		return nil, s.db.From(domain.LoanPostTable).Insert(ctx, post)
	})
	return err
}

// UpdateLoanPost patches a loan post by primary key.
func (s *Service) UpdateLoanPost(ctx context.Context, post domain.LoanPost) error {
	if post.ID == "" {
		return fmt.Errorf("update loan post: missing id")
	}
	_, err := s.cache.Run(ctx, query.Mutation{
		Endpoint:    EndpointUpdateLoanPost,
		Invalidates: []query.Tag{query.TagLoanPost},
	}, func(ctx context.Context) (any, error) {
		_, err := s.db.From(domain.LoanPostTable).
			Eq("id", post.ID).
			Update(ctx, post)
		return nil, err
	})
	return err
}

// DeleteLoanPost removes a loan post under the same ownership rule as
// DeleteCrowdFundingProject.
func (s *Service) DeleteLoanPost(ctx context.Context, id, creatorID string) error {
	_, err := s.cache.Run(ctx, query.Mutation{
		Endpoint:    EndpointDeleteLoanPost,
		Invalidates: []query.Tag{query.TagLoanPost},
	}, func(ctx context.Context) (any, error) {
		n, err := s.db.From(domain.LoanPostTable).
			Eq("id", id).
			Eq("creator_id", creatorID).
			Delete(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrNotOwner
		}
		return nil, nil
	})
	return err
}

// BidOneLoanPost appends a bid row. Bids invalidate nothing; the detail
// view refreshes through its own read path.
func (s *Service) BidOneLoanPost(ctx context.Context, bid domain.LoanBid) error {
	_, err := s.cache.Run(ctx, query.Mutation{
		Endpoint: EndpointBidOneLoanPost,
	}, func(ctx context.Context) (any, error) {
		rows := []map[string]any{{
			"loan_post_id": bid.LoanPostID,
			"bidder_id":    bid.BidderID,
			"amount":       bid.Amount,
		}}
		return nil, s.db.From(domain.LoanBidTable).Insert(ctx, rows)
	})
	return err
}
