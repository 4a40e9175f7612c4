// Package domain defines the entities the application reads and writes
// through Supabase tables, auth metadata, and storage.
package domain

import "time"

// Table and bucket names as provisioned in the Supabase project.
const (
	CrowdFundingTable             = "crowd_funding"
	CrowdFundingContributionTable = "crowd_funding_contributions"
	LoanPostTable                 = "loan-table"
	LoanBidTable                  = "loan_table_bidders"
	ProfileTable                  = "users"
	// AuthUserMirrorTable mirrors auth.users into the public schema so the
	// password-reset flow can check account existence with the anon key.
	AuthUserMirrorTable = "auth_users_database"
	UsersBucket         = "Users"
)

// CrowdFundingPost is a crowdfunding campaign row, optionally joined with
// its contributions.
type CrowdFundingPost struct {
	ID                  string         `json:"id,omitempty"`
	CreatorID           string         `json:"creator_id"`
	Title               string         `json:"title"`
	BusinessName        string         `json:"business_name"`
	BusinessDescription string         `json:"business_description"`
	TargetAmount        float64        `json:"target_amount"`
	CurrentAmount       float64        `json:"current_amount,omitempty"`
	Images              []string       `json:"images,omitempty"`
	CreatedAt           *time.Time     `json:"created_at,omitempty"`
	UpdatedAt           *time.Time     `json:"updated_at,omitempty"`
	Contributions       []Contribution `json:"contributions,omitempty"`
}

// ContributionTotal is the displayed raised amount. It is always recomputed
// from the joined contributions; the stored current_amount column is never
// trusted on the read path.
func (p CrowdFundingPost) ContributionTotal() float64 {
	var total float64
	for _, c := range p.Contributions {
		total += c.Amount
	}
	return total
}

// ContributorCount returns the number of contributions on the post.
func (p CrowdFundingPost) ContributorCount() int {
	return len(p.Contributions)
}

// Contribution is an append-only child row of a crowdfunding post.
// Rows are immutable once created.
type Contribution struct {
	ID                 int64      `json:"id,omitempty"`
	CrowdFundingPostID string     `json:"crowd_funding_post_id"`
	ContributorID      string     `json:"contributor_id"`
	Amount             float64    `json:"amount"`
	ContributedAt      *time.Time `json:"contributed_at,omitempty"`
}
