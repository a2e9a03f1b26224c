package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"gawangliliw/sellerhub/internal/config"
	"gawangliliw/sellerhub/internal/db"
	"gawangliliw/sellerhub/internal/logger"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/storage"
	"gawangliliw/sellerhub/internal/utils"
)

// ISellerService covers the account and settings pages.
type ISellerService interface {
	GetProfile(ctx context.Context, sellerID utils.SixID) (*models.Seller, error)
	UpdateProfile(ctx context.Context, sellerID utils.SixID, fields map[string]interface{}) (*models.Seller, error)
	FollowerCount(ctx context.Context, sellerID utils.SixID) (int64, error)
	UploadPermit(ctx context.Context, sellerID utils.SixID, kind models.PermitKind, filename, contentType string, data []byte) (*models.PermitDocument, error)
	UpdateSettings(ctx context.Context, sellerID utils.SixID, fields map[string]interface{}) (*models.Seller, error)
	SetPaymentMethod(ctx context.Context, sellerID utils.SixID, provider models.PaymentProvider, accountName, accountNumber string) (*models.PaymentMethod, error)
	UploadPaymentQR(ctx context.Context, sellerID utils.SixID, provider models.PaymentProvider, filename, contentType string, data []byte) (string, error)
	ResolveFileURL(ctx context.Context, sellerID utils.SixID, key string) (string, error)
	PresignUpload(ctx context.Context, sellerID utils.SixID, filename, contentType string) (string, string, error)
}

var profileFields = map[string]fieldRule{
	"store_name":          requiredString(80),
	"owner_name":          stringField(80),
	"phone":               stringField(20),
	"description":         stringField(1000),
	"address.street":      stringField(120),
	"address.barangay":    stringField(80),
	"address.city":        stringField(80),
	"address.province":    stringField(80),
	"address.postal_code": stringField(10),
}

var settingsFields = map[string]fieldRule{
	"store_open":                boolField,
	"notifications.new_order":   boolField,
	"notifications.new_message": boolField,
	"notifications.new_review":  boolField,
}

// Allowed upload content types for documents and images.
var (
	documentTypes = map[string]bool{"application/pdf": true, "image/jpeg": true, "image/png": true}
	imageTypes    = map[string]bool{"image/jpeg": true, "image/png": true}
)

// IsImage reports whether contentType is one the image task can normalise.
func IsImage(contentType string) bool {
	return imageTypes[contentType]
}

type sellerService struct {
	db    *mongo.Database
	cfg   *config.Config
	files storage.IFileStore
}

func NewSellerService(database *mongo.Database, cfg *config.Config, files storage.IFileStore) ISellerService {
	return &sellerService{db: database, cfg: cfg, files: files}
}

func (s *sellerService) sellers() *mongo.Collection {
	return s.db.Collection(db.SellersCollection)
}

// GetProfile reads the seller's profile. Missing numeric fields decode as 0.
func (s *sellerService) GetProfile(ctx context.Context, sellerID utils.SixID) (*models.Seller, error) {
	var seller models.Seller
	if err := s.sellers().FindOne(ctx, bson.M{"_id": sellerID}).Decode(&seller); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding seller %s: %w", sellerID, err)
	}
	count, err := s.FollowerCount(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	seller.FollowerCount = count
	return &seller, nil
}

func (s *sellerService) FollowerCount(ctx context.Context, sellerID utils.SixID) (int64, error) {
	n, err := s.db.Collection(db.FollowersCollection).CountDocuments(ctx, bson.M{"seller_id": sellerID})
	if err != nil {
		return 0, fmt.Errorf("error counting followers of %s: %w", sellerID, err)
	}
	return n, nil
}

func (s *sellerService) applySet(ctx context.Context, sellerID utils.SixID, set bson.D) (*models.Seller, error) {
	set = append(set, bson.E{Key: "updated_at", Value: time.Now().UTC()})
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var seller models.Seller
	err := s.sellers().FindOneAndUpdate(ctx, bson.M{"_id": sellerID}, bson.D{{Key: "$set", Value: set}}, opts).Decode(&seller)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error updating seller %s: %w", sellerID, err)
	}
	return &seller, nil
}

// UpdateProfile merges allow-listed contact and address fields.
func (s *sellerService) UpdateProfile(ctx context.Context, sellerID utils.SixID, fields map[string]interface{}) (*models.Seller, error) {
	set, err := buildSet(fields, profileFields, "")
	if err != nil {
		return nil, err
	}
	return s.applySet(ctx, sellerID, set)
}

// UpdateSettings merges the store toggles.
func (s *sellerService) UpdateSettings(ctx context.Context, sellerID utils.SixID, fields map[string]interface{}) (*models.Seller, error) {
	set, err := buildSet(fields, settingsFields, "settings.")
	if err != nil {
		return nil, err
	}
	return s.applySet(ctx, sellerID, set)
}

func (s *sellerService) checkUpload(contentType string, data []byte, allowed map[string]bool) error {
	if len(data) == 0 {
		return invalidf("empty file")
	}
	if max := int64(s.cfg.UploadMaxSizeMB) * 1024 * 1024; max > 0 && int64(len(data)) > max {
		return invalidf("file exceeds %d MB", s.cfg.UploadMaxSizeMB)
	}
	if !allowed[contentType] {
		return invalidf("unsupported content type %q", contentType)
	}
	return nil
}

// UploadPermit stores the file, then records it on the profile. The two
// steps are not atomic: a failed profile update leaves the blob behind.
func (s *sellerService) UploadPermit(ctx context.Context, sellerID utils.SixID, kind models.PermitKind, filename, contentType string, data []byte) (*models.PermitDocument, error) {
	if !isPermitKind(kind) {
		return nil, invalidf("unknown permit kind %q", kind)
	}
	if err := s.checkUpload(contentType, data, documentTypes); err != nil {
		return nil, err
	}

	key := storage.PermitKey(sellerID.String(), string(kind), filename)
	if err := s.files.Upload(ctx, key, data, contentType); err != nil {
		return nil, err
	}

	doc := models.PermitDocument{FileKey: key, FileName: storage.SanitizeFilename(filename), UploadedAt: time.Now().UTC()}
	if _, err := s.applySet(ctx, sellerID, bson.D{{Key: "permits." + string(kind), Value: doc}}); err != nil {
		logger.Log.Warn("permit_orphaned", zap.String("seller_id", sellerID.String()), zap.String("key", key), zap.Error(err))
		return nil, err
	}
	logger.Log.Info("permit_uploaded", zap.String("seller_id", sellerID.String()), zap.String("kind", string(kind)))
	return &doc, nil
}

func isPermitKind(kind models.PermitKind) bool {
	for _, k := range models.ValidPermitKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// NormalizeAccountNumber strips separators and validates the digits for
// the provider: e-wallets take 10 to 16 digits, banks 6 to 20.
func NormalizeAccountNumber(provider models.PaymentProvider, number string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, number)
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", invalidf("account number must contain digits only")
		}
	}
	minLen, maxLen := 10, 16
	switch provider {
	case models.PaymentGCash, models.PaymentMaya:
	case models.PaymentBank:
		minLen, maxLen = 6, 20
	default:
		return "", invalidf("unknown payment provider %q", provider)
	}
	if len(cleaned) < minLen || len(cleaned) > maxLen {
		return "", invalidf("account number must be %d to %d digits", minLen, maxLen)
	}
	return cleaned, nil
}

func (s *sellerService) SetPaymentMethod(ctx context.Context, sellerID utils.SixID, provider models.PaymentProvider, accountName, accountNumber string) (*models.PaymentMethod, error) {
	number, err := NormalizeAccountNumber(provider, accountNumber)
	if err != nil {
		return nil, err
	}
	accountName = strings.TrimSpace(accountName)
	if accountName == "" {
		return nil, invalidf("account name is required")
	}
	prefix := "payment_methods." + string(provider) + "."
	now := time.Now().UTC()
	seller, err := s.applySet(ctx, sellerID, bson.D{
		{Key: prefix + "account_name", Value: accountName},
		{Key: prefix + "account_number", Value: number},
		{Key: prefix + "updated_at", Value: now},
	})
	if err != nil {
		return nil, err
	}
	pm := seller.PaymentMethods[provider]
	return &pm, nil
}

// UploadPaymentQR follows the permit path: store the image, then point the
// payment method at it.
func (s *sellerService) UploadPaymentQR(ctx context.Context, sellerID utils.SixID, provider models.PaymentProvider, filename, contentType string, data []byte) (string, error) {
	switch provider {
	case models.PaymentGCash, models.PaymentMaya, models.PaymentBank:
	default:
		return "", invalidf("unknown payment provider %q", provider)
	}
	if err := s.checkUpload(contentType, data, imageTypes); err != nil {
		return "", err
	}
	key := storage.PaymentQRKey(sellerID.String(), string(provider), filename)
	if err := s.files.Upload(ctx, key, data, contentType); err != nil {
		return "", err
	}
	prefix := "payment_methods." + string(provider) + "."
	if _, err := s.applySet(ctx, sellerID, bson.D{
		{Key: prefix + "qr_file_key", Value: key},
		{Key: prefix + "updated_at", Value: time.Now().UTC()},
	}); err != nil {
		logger.Log.Warn("qr_orphaned", zap.String("seller_id", sellerID.String()), zap.String("key", key), zap.Error(err))
		return "", err
	}
	return key, nil
}

// ResolveFileURL resolves a key the seller owns.
func (s *sellerService) ResolveFileURL(ctx context.Context, sellerID utils.SixID, key string) (string, error) {
	if !storage.OwnedBy(key, sellerID.String()) {
		return "", ErrForbidden
	}
	return s.files.ResolveURL(ctx, key)
}

// PresignUpload hands the browser a direct upload URL under the seller's prefix.
func (s *sellerService) PresignUpload(ctx context.Context, sellerID utils.SixID, filename, contentType string) (string, string, error) {
	if !documentTypes[contentType] {
		return "", "", invalidf("unsupported content type %q", contentType)
	}
	key := storage.UploadKey(sellerID.String(), filename)
	url, err := s.files.GeneratePresignedPutURL(ctx, key, contentType)
	if err != nil {
		return "", "", err
	}
	return url, key, nil
}
