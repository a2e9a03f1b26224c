package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gawangliliw/sellerhub/internal/db"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/utils"
)

// IReviewService backs the reviews panel.
type IReviewService interface {
	List(ctx context.Context, sellerID utils.SixID, rating int) ([]models.Review, error)
	Summary(ctx context.Context, sellerID utils.SixID) (*models.RatingSummary, error)
	VoteHelpful(ctx context.Context, sellerID, reviewID utils.SixID) (int, error)
}

type reviewService struct {
	db *mongo.Database
}

func NewReviewService(database *mongo.Database) IReviewService {
	return &reviewService{db: database}
}

func (s *reviewService) reviews() *mongo.Collection {
	return s.db.Collection(db.ReviewsCollection)
}

// List returns the seller's reviews newest first; rating 1..5 narrows to
// that star count, 0 returns all.
func (s *reviewService) List(ctx context.Context, sellerID utils.SixID, rating int) ([]models.Review, error) {
	if rating < 0 || rating > 5 {
		return nil, invalidf("rating filter must be between 1 and 5")
	}
	filter := bson.M{"seller_id": sellerID}
	if rating > 0 {
		filter["rating"] = rating
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.reviews().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing reviews: %w", err)
	}
	reviews := []models.Review{}
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("error decoding reviews: %w", err)
	}
	return reviews, nil
}

func (s *reviewService) Summary(ctx context.Context, sellerID utils.SixID) (*models.RatingSummary, error) {
	reviews, err := s.List(ctx, sellerID, 0)
	if err != nil {
		return nil, err
	}
	summary := models.SummarizeRatings(reviews)
	return &summary, nil
}

// VoteHelpful increments the review's helpful counter and returns the new value.
func (s *reviewService) VoteHelpful(ctx context.Context, sellerID, reviewID utils.SixID) (int, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var r models.Review
	err := s.reviews().FindOneAndUpdate(ctx,
		bson.M{"_id": reviewID, "seller_id": sellerID},
		bson.M{"$inc": bson.M{"helpful_votes": 1}}, opts).Decode(&r)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("error voting on review %s: %w", reviewID, err)
	}
	return r.HelpfulVotes, nil
}
