package models

import "time"

// Deal is the structured flight offer extracted from a forum post.
type Deal struct {
	Airlines []string `json:"airlines" firestore:"airlines"`
	From     string   `json:"from" firestore:"from" validate:"required"`
	To       string   `json:"to" firestore:"to" validate:"required"`
	Price    string   `json:"price" firestore:"price" validate:"required"`
	When     string   `json:"when,omitempty" firestore:"when,omitempty"`
}

// PostRecord is one row of the state table. URL is the identity key.
type PostRecord struct {
	Title     string `validate:"required"`
	CreatedAt time.Time
	URL       string `validate:"required"`
	Content   string
	ImgCount  int `validate:"gte=0"`
	Response  *Deal
	Checked   bool
}

// Processed reports whether extraction has produced a deal for this post.
func (p PostRecord) Processed() bool {
	return p.Response != nil
}
