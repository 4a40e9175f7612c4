package domain

import "time"

// LoanPost is a loan-request row, optionally joined with its bids.
type LoanPost struct {
	ID          string     `json:"id,omitempty"`
	CreatorID   string     `json:"creator_id"`
	LoanAmount  float64    `json:"loan_amount"`
	LoanPurpose string     `json:"loan_purpose"`
	Status      string     `json:"status"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	Bidders     []LoanBid  `json:"bidders,omitempty"`
}

// LoanBid is an append-only child row of a loan post.
type LoanBid struct {
	ID         string     `json:"id,omitempty"`
	LoanPostID string     `json:"loan_post_id"`
	BidderID   string     `json:"bidder_id"`
	Amount     float64    `json:"amount"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}
