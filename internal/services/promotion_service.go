package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"gawangliliw/sellerhub/internal/db"
	"gawangliliw/sellerhub/internal/logger"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/utils"
	"gawangliliw/sellerhub/internal/view"
)

// PromotionInput is the editable part of a promotion.
type PromotionInput struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Title       string          `json:"title"`
	Discount    models.Discount `json:"discount"`
	StartsAt    time.Time       `json:"starts_at"`
	EndsAt      time.Time       `json:"ends_at"`
	Disabled    bool            `json:"disabled"`
}

// Validate checks the discount shape and the validity window.
func (in *PromotionInput) Validate() error {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.Title = strings.TrimSpace(in.Title)
	if in.ProductID == "" {
		return invalidf("product_id is required")
	}
	if in.Title == "" {
		return invalidf("title is required")
	}
	if err := ValidateDiscount(in.Discount); err != nil {
		return err
	}
	if in.StartsAt.IsZero() || in.EndsAt.IsZero() {
		return invalidf("starts_at and ends_at are required")
	}
	if !in.StartsAt.Before(in.EndsAt) {
		return invalidf("starts_at must be before ends_at")
	}
	return nil
}

// ValidateDiscount enforces the two discount shapes.
func ValidateDiscount(d models.Discount) error {
	switch d.Type {
	case models.DiscountPercentage:
		if d.Value <= 0 || d.Value > 100 {
			return invalidf("percentage must be greater than 0 and at most 100")
		}
	case models.DiscountBundle:
		if d.BundleQuantity < 2 {
			return invalidf("bundle quantity must be at least 2")
		}
		if d.BundlePrice <= 0 {
			return invalidf("bundle price must be positive")
		}
	default:
		return invalidf("unknown discount type %q", d.Type)
	}
	return nil
}

// IPromotionService backs the promotions page and the status refresh task.
type IPromotionService interface {
	List(ctx context.Context, sellerID utils.SixID, status models.PromoStatus, now time.Time) ([]models.Promotion, error)
	Create(ctx context.Context, sellerID utils.SixID, in PromotionInput) (*models.Promotion, error)
	Update(ctx context.Context, sellerID, promotionID utils.SixID, in PromotionInput) (*models.Promotion, error)
	Delete(ctx context.Context, sellerID, promotionID utils.SixID) error
	RefreshStatuses(ctx context.Context, now time.Time) (int64, error)
}

type promotionService struct {
	db *mongo.Database
}

func NewPromotionService(database *mongo.Database) IPromotionService {
	return &promotionService{db: database}
}

func (s *promotionService) promotions() *mongo.Collection {
	return s.db.Collection(db.PromotionsCollection)
}

// FilterPromotions recomputes every status at now and keeps those matching
// status (all when empty). Newest start first.
func FilterPromotions(promos []models.Promotion, status models.PromoStatus, now time.Time) []models.Promotion {
	for i := range promos {
		promos[i].Status = promos[i].StatusAt(now)
	}
	out := view.Filter(promos, func(p models.Promotion) bool {
		return status == "" || p.Status == status
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartsAt.After(out[j].StartsAt) })
	return out
}

func (s *promotionService) List(ctx context.Context, sellerID utils.SixID, status models.PromoStatus, now time.Time) ([]models.Promotion, error) {
	switch status {
	case "", models.PromoUpcoming, models.PromoActive, models.PromoInactive:
	default:
		return nil, invalidf("unknown status %q", status)
	}
	cursor, err := s.promotions().Find(ctx, bson.M{"seller_id": sellerID})
	if err != nil {
		return nil, fmt.Errorf("error listing promotions: %w", err)
	}
	promos := []models.Promotion{}
	if err := cursor.All(ctx, &promos); err != nil {
		return nil, fmt.Errorf("error decoding promotions: %w", err)
	}
	return FilterPromotions(promos, status, now), nil
}

func (s *promotionService) Create(ctx context.Context, sellerID utils.SixID, in PromotionInput) (*models.Promotion, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p := &models.Promotion{
		SellerID:    sellerID,
		ProductID:   in.ProductID,
		ProductName: strings.TrimSpace(in.ProductName),
		Title:       in.Title,
		Discount:    in.Discount,
		StartsAt:    in.StartsAt.UTC(),
		EndsAt:      in.EndsAt.UTC(),
		Disabled:    in.Disabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	p.Status = p.StatusAt(now)
	if err := db.InsertWithNewID(ctx, s.promotions(), p); err != nil {
		return nil, fmt.Errorf("error inserting promotion: %w", err)
	}
	logger.Log.Info("promotion_created", zap.String("seller_id", sellerID.String()), zap.String("promotion_id", p.ID.String()))
	return p, nil
}

func (s *promotionService) Update(ctx context.Context, sellerID, promotionID utils.SixID, in PromotionInput) (*models.Promotion, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	probe := models.Promotion{StartsAt: in.StartsAt, EndsAt: in.EndsAt, Disabled: in.Disabled}
	update := bson.M{"$set": bson.M{
		"product_id":   in.ProductID,
		"product_name": strings.TrimSpace(in.ProductName),
		"title":        in.Title,
		"discount":     in.Discount,
		"starts_at":    in.StartsAt.UTC(),
		"ends_at":      in.EndsAt.UTC(),
		"disabled":     in.Disabled,
		"status":       probe.StatusAt(now),
		"updated_at":   now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Promotion
	err := s.promotions().FindOneAndUpdate(ctx, bson.M{"_id": promotionID, "seller_id": sellerID}, update, opts).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error updating promotion %s: %w", promotionID, err)
	}
	return &p, nil
}

func (s *promotionService) Delete(ctx context.Context, sellerID, promotionID utils.SixID) error {
	res, err := s.promotions().DeleteOne(ctx, bson.M{"_id": promotionID, "seller_id": sellerID})
	if err != nil {
		return fmt.Errorf("error deleting promotion %s: %w", promotionID, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RefreshStatuses persists the status computed at now for every promotion
// whose stored status is stale. Returns the number of documents changed.
func (s *promotionService) RefreshStatuses(ctx context.Context, now time.Time) (int64, error) {
	coll := s.promotions()
	var changed int64
	filters := []struct {
		status models.PromoStatus
		filter bson.M
	}{
		{models.PromoUpcoming, bson.M{"starts_at": bson.M{"$gt": now}, "status": bson.M{"$ne": models.PromoUpcoming}}},
		{models.PromoInactive, bson.M{"starts_at": bson.M{"$lte": now}, "status": bson.M{"$ne": models.PromoInactive},
			"$or": bson.A{bson.M{"ends_at": bson.M{"$lt": now}}, bson.M{"disabled": true}}}},
		{models.PromoActive, bson.M{"starts_at": bson.M{"$lte": now}, "ends_at": bson.M{"$gte": now}, "disabled": false,
			"status": bson.M{"$ne": models.PromoActive}}},
	}
	for _, f := range filters {
		res, err := coll.UpdateMany(ctx, f.filter, bson.M{"$set": bson.M{"status": f.status, "updated_at": now}})
		if err != nil {
			return changed, fmt.Errorf("error refreshing %s promotions: %w", f.status, err)
		}
		changed += res.ModifiedCount
	}
	return changed, nil
}
