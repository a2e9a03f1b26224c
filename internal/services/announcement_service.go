package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gawangliliw/sellerhub/internal/db"
	"gawangliliw/sellerhub/internal/models"
)

type IAnnouncementService interface {
	ListActive(ctx context.Context, now time.Time) ([]models.Announcement, error)
}

type announcementService struct {
	db *mongo.Database
}

func NewAnnouncementService(database *mongo.Database) IAnnouncementService {
	return &announcementService{db: database}
}

// ListActive returns seller-facing announcements whose window contains now,
// newest first.
func (s *announcementService) ListActive(ctx context.Context, now time.Time) ([]models.Announcement, error) {
	filter := bson.M{
		"audience":  bson.M{"$in": bson.A{models.AudienceSellers, models.AudienceAll}},
		"starts_at": bson.M{"$lte": now},
		"ends_at":   bson.M{"$gte": now},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(db.AnnouncementsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing announcements: %w", err)
	}
	out := []models.Announcement{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("error decoding announcements: %w", err)
	}
	return out, nil
}
