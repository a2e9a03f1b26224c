package models

import (
	"time"

	"gawangliliw/sellerhub/internal/utils"
)

// Review is a buyer's rating of a seller.
type Review struct {
	Base         `bson:",inline"`
	SellerID     utils.SixID `bson:"seller_id" json:"seller_id"`
	BuyerID      utils.SixID `bson:"buyer_id" json:"buyer_id"`
	BuyerName    string      `bson:"buyer_name" json:"buyer_name"`
	OrderID      utils.SixID `bson:"order_id,omitempty" json:"order_id,omitempty"`
	ProductName  string      `bson:"product_name,omitempty" json:"product_name,omitempty"`
	Rating       int         `bson:"rating" json:"rating"`
	Text         string      `bson:"text" json:"text"`
	HelpfulVotes int         `bson:"helpful_votes" json:"helpful_votes"`
	CreatedAt    time.Time   `bson:"created_at" json:"created_at"`
}

// RatingSummary aggregates a seller's reviews.
type RatingSummary struct {
	Average      float64     `json:"average"`
	Count        int         `json:"count"`
	Distribution map[int]int `json:"distribution"` // star -> count, 1..5
}

// SummarizeRatings computes average and distribution over rated reviews.
// A missing rating decodes as 0 and is left out; ratings above 5 count as 5.
func SummarizeRatings(reviews []Review) RatingSummary {
	summary := RatingSummary{Distribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	total := 0
	for _, r := range reviews {
		star := r.Rating
		if star < 1 {
			continue
		}
		if star > 5 {
			star = 5
		}
		summary.Distribution[star]++
		total += star
		summary.Count++
	}
	if summary.Count > 0 {
		summary.Average = float64(total) / float64(summary.Count)
	}
	return summary
}
