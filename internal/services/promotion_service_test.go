package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gawangliliw/sellerhub/internal/db"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/utils"
)

func validInput(now time.Time) PromotionInput {
	return PromotionInput{
		ProductID:   "basket-01",
		ProductName: "Abaca Basket",
		Title:       "Summer sale",
		Discount:    models.Discount{Type: models.DiscountPercentage, Value: 20},
		StartsAt:    now.Add(-time.Hour),
		EndsAt:      now.Add(24 * time.Hour),
	}
}

func TestValidateDiscount(t *testing.T) {
	tests := []struct {
		name string
		d    models.Discount
		ok   bool
	}{
		{"percentage", models.Discount{Type: models.DiscountPercentage, Value: 15}, true},
		{"full percentage", models.Discount{Type: models.DiscountPercentage, Value: 100}, true},
		{"zero percentage", models.Discount{Type: models.DiscountPercentage, Value: 0}, false},
		{"over 100", models.Discount{Type: models.DiscountPercentage, Value: 100.5}, false},
		{"bundle", models.Discount{Type: models.DiscountBundle, BundleQuantity: 3, BundlePrice: 250}, true},
		{"bundle of one", models.Discount{Type: models.DiscountBundle, BundleQuantity: 1, BundlePrice: 250}, false},
		{"free bundle", models.Discount{Type: models.DiscountBundle, BundleQuantity: 2, BundlePrice: 0}, false},
		{"unknown", models.Discount{Type: "bogo"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDiscount(tt.d)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidInput)
			}
		})
	}
}

func TestPromotionInputValidate(t *testing.T) {
	now := time.Now()
	in := validInput(now)
	assert.NoError(t, in.Validate())

	in = validInput(now)
	in.EndsAt = in.StartsAt
	assert.ErrorIs(t, in.Validate(), ErrInvalidInput)

	in = validInput(now)
	in.ProductID = "  "
	assert.ErrorIs(t, in.Validate(), ErrInvalidInput)
}

func TestFilterPromotions(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	promos := []models.Promotion{
		{Title: "past", StartsAt: now.AddDate(0, -2, 0), EndsAt: now.AddDate(0, -1, 0)},
		{Title: "live", StartsAt: now.AddDate(0, 0, -1), EndsAt: now.AddDate(0, 0, 1)},
		{Title: "soon", StartsAt: now.AddDate(0, 0, 3), EndsAt: now.AddDate(0, 0, 5)},
		{Title: "off", StartsAt: now.AddDate(0, 0, -2), EndsAt: now.AddDate(0, 0, 2), Disabled: true},
		{Title: "edge", StartsAt: now, EndsAt: now.Add(time.Hour)},
	}

	all := FilterPromotions(promos, "", now)
	require.Len(t, all, 5)
	assert.Equal(t, "soon", all[0].Title)

	active := FilterPromotions(promos, models.PromoActive, now)
	titles := []string{}
	for _, p := range active {
		titles = append(titles, p.Title)
	}
	assert.ElementsMatch(t, []string{"live", "edge"}, titles)

	inactive := FilterPromotions(promos, models.PromoInactive, now)
	assert.Len(t, inactive, 2)

	upcoming := FilterPromotions(promos, models.PromoUpcoming, now)
	require.Len(t, upcoming, 1)
	assert.Equal(t, models.PromoUpcoming, upcoming[0].Status)
}

func TestPromotionServiceMongo(t *testing.T) {
	database := utils.SetupTestDB(t, "sellerhub_test_promotions", db.PromotionsCollection)
	svc := NewPromotionService(database)
	ctx := context.Background()
	seller := utils.NewSixID()
	other := utils.NewSixID()
	now := time.Now().UTC()

	created, err := svc.Create(ctx, seller, validInput(now))
	require.NoError(t, err)
	assert.Equal(t, models.PromoActive, created.Status)

	future := validInput(now)
	future.StartsAt = now.Add(48 * time.Hour)
	future.EndsAt = now.Add(72 * time.Hour)
	_, err = svc.Create(ctx, seller, future)
	require.NoError(t, err)

	list, err := svc.List(ctx, seller, models.PromoUpcoming, now)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.Update(ctx, other, created.ID, validInput(now))
	assert.ErrorIs(t, err, ErrNotFound)

	in := validInput(now)
	in.Disabled = true
	updated, err := svc.Update(ctx, seller, created.ID, in)
	require.NoError(t, err)
	assert.Equal(t, models.PromoInactive, updated.Status)

	// A week later the upcoming promotion has expired.
	changed, err := svc.RefreshStatuses(ctx, now.Add(7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	assert.ErrorIs(t, svc.Delete(ctx, other, created.ID), ErrNotFound)
	assert.NoError(t, svc.Delete(ctx, seller, created.ID))
}
