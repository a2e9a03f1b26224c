package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gawangliliw/sellerhub/internal/config"
	"gawangliliw/sellerhub/internal/db"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/utils"
)

func TestNormalizeAccountNumber(t *testing.T) {
	n, err := NormalizeAccountNumber(models.PaymentGCash, "0917-123 4567")
	require.NoError(t, err)
	assert.Equal(t, "09171234567", n)

	_, err = NormalizeAccountNumber(models.PaymentMaya, "12345")
	assert.ErrorIs(t, err, ErrInvalidInput)

	n, err = NormalizeAccountNumber(models.PaymentBank, "001234")
	require.NoError(t, err)
	assert.Equal(t, "001234", n)

	_, err = NormalizeAccountNumber(models.PaymentBank, "12ab5678")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NormalizeAccountNumber("paypal", "09171234567")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSellerFileAccess(t *testing.T) {
	files := newMemFiles()
	svc := NewSellerService(nil, &config.Config{UploadMaxSizeMB: 1}, files)
	ctx := context.Background()
	seller := utils.NewSixID()
	other := utils.NewSixID()

	url, err := svc.ResolveFileURL(ctx, seller, "sellers/"+seller.String()+"/permits/valid_id/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://files.test/sellers/"+seller.String()+"/permits/valid_id/a.png", url)

	_, err = svc.ResolveFileURL(ctx, seller, "sellers/"+other.String()+"/permits/valid_id/a.png")
	assert.ErrorIs(t, err, ErrForbidden)

	putURL, key, err := svc.PresignUpload(ctx, seller, "receipt.pdf", "application/pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "sellers/"+seller.String()+"/uploads/"))
	assert.Equal(t, "https://upload.test/"+key, putURL)

	_, _, err = svc.PresignUpload(ctx, seller, "run.exe", "application/x-msdownload")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSellerUploadValidation(t *testing.T) {
	files := newMemFiles()
	svc := NewSellerService(nil, &config.Config{UploadMaxSizeMB: 1}, files)
	ctx := context.Background()
	seller := utils.NewSixID()

	_, err := svc.UploadPermit(ctx, seller, "passport", "p.pdf", "application/pdf", []byte("%PDF"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.UploadPermit(ctx, seller, models.PermitDTI, "p.pdf", "application/pdf", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.UploadPermit(ctx, seller, models.PermitDTI, "p.txt", "text/plain", []byte("hi"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.UploadPermit(ctx, seller, models.PermitDTI, "p.pdf", "application/pdf", make([]byte, 1024*1024+1))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UploadPaymentQR(ctx, seller, models.PaymentGCash, "qr.pdf", "application/pdf", []byte("%PDF"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.UploadPaymentQR(ctx, seller, "paypal", "qr.png", "image/png", []byte("png"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, files.keys())
}

func TestSellerServiceMongo(t *testing.T) {
	database := utils.SetupTestDB(t, "sellerhub_test_sellers", db.SellersCollection, db.FollowersCollection)
	files := newMemFiles()
	svc := NewSellerService(database, &config.Config{UploadMaxSizeMB: 1}, files)
	ctx := context.Background()

	seller := &models.Seller{ID: utils.NewSixID(), StoreName: "Liliw Crafts", Settings: models.StoreSettings{StoreOpen: true}, CreatedAt: time.Now().UTC()}
	_, err := database.Collection(db.SellersCollection).InsertOne(ctx, seller)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		f := &models.Follower{SellerID: seller.ID, BuyerID: utils.NewSixID(), CreatedAt: time.Now().UTC()}
		f.GenID()
		_, err := database.Collection(db.FollowersCollection).InsertOne(ctx, f)
		require.NoError(t, err)
	}

	got, err := svc.GetProfile(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.FollowerCount)

	updated, err := svc.UpdateProfile(ctx, seller.ID, map[string]interface{}{
		"phone":   " 0917 000 0000 ",
		"address": map[string]interface{}{"city": "Liliw", "province": "Laguna"},
	})
	require.NoError(t, err)
	assert.Equal(t, "0917 000 0000", updated.Phone)
	assert.Equal(t, "Liliw", updated.Address.City)
	assert.Equal(t, "Liliw Crafts", updated.StoreName)

	_, err = svc.UpdateProfile(ctx, seller.ID, map[string]interface{}{"rating": 5})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.UpdateProfile(ctx, seller.ID, map[string]interface{}{"store_name": "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	updated, err = svc.UpdateSettings(ctx, seller.ID, map[string]interface{}{
		"store_open":    false,
		"notifications": map[string]interface{}{"new_review": true},
	})
	require.NoError(t, err)
	assert.False(t, updated.Settings.StoreOpen)
	assert.True(t, updated.Settings.Notifications.NewReview)

	doc, err := svc.UploadPermit(ctx, seller.ID, models.PermitBIR, "bir 2303.pdf", "application/pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "bir_2303.pdf", doc.FileName)
	assert.Contains(t, files.keys(), doc.FileKey)

	pm, err := svc.SetPaymentMethod(ctx, seller.ID, models.PaymentGCash, "Juan Dela Cruz", "0917 123 4567")
	require.NoError(t, err)
	assert.Equal(t, "09171234567", pm.AccountNumber)

	qrKey, err := svc.UploadPaymentQR(ctx, seller.ID, models.PaymentGCash, "qr.png", "image/png", []byte("png"))
	require.NoError(t, err)

	got, err = svc.GetProfile(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.FileKey, got.Permits[models.PermitBIR].FileKey)
	assert.Equal(t, qrKey, got.PaymentMethods[models.PaymentGCash].QRFileKey)
	assert.Equal(t, "Juan Dela Cruz", got.PaymentMethods[models.PaymentGCash].AccountName)

	_, err = svc.GetProfile(ctx, utils.NewSixID())
	assert.ErrorIs(t, err, ErrNotFound)
}
