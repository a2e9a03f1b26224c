package models

import (
	"time"

	"gawangliliw/sellerhub/internal/utils"
)

// PermitKind names an uploaded business document.
type PermitKind string

const (
	PermitBusiness PermitKind = "business_permit"
	PermitDTI      PermitKind = "dti_registration"
	PermitBIR      PermitKind = "bir_registration"
	PermitMayor    PermitKind = "mayors_permit"
	PermitValidID  PermitKind = "valid_id"
)

// ValidPermitKinds lists the document slots a seller may fill.
var ValidPermitKinds = []PermitKind{PermitBusiness, PermitDTI, PermitBIR, PermitMayor, PermitValidID}

// PaymentProvider names a payout channel shown to buyers.
type PaymentProvider string

const (
	PaymentGCash PaymentProvider = "gcash"
	PaymentMaya  PaymentProvider = "maya"
	PaymentBank  PaymentProvider = "bank"
)

// Address is the seller's pickup/return address.
type Address struct {
	Street     string `bson:"street" json:"street"`
	Barangay   string `bson:"barangay" json:"barangay"`
	City       string `bson:"city" json:"city"`
	Province   string `bson:"province" json:"province"`
	PostalCode string `bson:"postal_code" json:"postal_code"`
}

// PermitDocument records an uploaded document in the file store.
type PermitDocument struct {
	FileKey    string    `bson:"file_key" json:"file_key"`
	FileName   string    `bson:"file_name" json:"file_name"`
	UploadedAt time.Time `bson:"uploaded_at" json:"uploaded_at"`
	Verified   bool      `bson:"verified" json:"verified"`
}

// PaymentMethod is an account number plus an optional QR code image.
type PaymentMethod struct {
	AccountName   string    `bson:"account_name" json:"account_name"`
	AccountNumber string    `bson:"account_number" json:"account_number"`
	QRFileKey     string    `bson:"qr_file_key,omitempty" json:"qr_file_key,omitempty"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
}

// NotificationPreferences controls which events reach the seller.
type NotificationPreferences struct {
	NewOrder   bool `bson:"new_order" json:"new_order"`
	NewMessage bool `bson:"new_message" json:"new_message"`
	NewReview  bool `bson:"new_review" json:"new_review"`
}

// StoreSettings are the toggles edited on the settings page.
type StoreSettings struct {
	StoreOpen     bool                    `bson:"store_open" json:"store_open"`
	Notifications NotificationPreferences `bson:"notifications" json:"notifications"`
}

// Seller is the profile document scoped to one seller.
type Seller struct {
	ID             utils.SixID                       `bson:"_id" json:"id"`
	StoreName      string                            `bson:"store_name" json:"store_name"`
	OwnerName      string                            `bson:"owner_name" json:"owner_name"`
	Email          string                            `bson:"email" json:"email"`
	Phone          string                            `bson:"phone" json:"phone"`
	Description    string                            `bson:"description" json:"description"`
	Address        Address                           `bson:"address" json:"address"`
	LogoFileKey    string                            `bson:"logo_file_key,omitempty" json:"logo_file_key,omitempty"`
	Permits        map[PermitKind]PermitDocument     `bson:"permits,omitempty" json:"permits,omitempty"`
	PaymentMethods map[PaymentProvider]PaymentMethod `bson:"payment_methods,omitempty" json:"payment_methods,omitempty"`
	Settings       StoreSettings                     `bson:"settings" json:"settings"`
	Rating         float64                           `bson:"rating" json:"rating"`
	TotalSales     float64                           `bson:"total_sales" json:"total_sales"`
	FollowerCount  int64                             `bson:"-" json:"follower_count"`
	CreatedAt      time.Time                         `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time                         `bson:"updated_at" json:"updated_at"`
}

// Follower links a buyer to a followed seller.
type Follower struct {
	Base      `bson:",inline"`
	SellerID  utils.SixID `bson:"seller_id" json:"seller_id"`
	BuyerID   utils.SixID `bson:"buyer_id" json:"buyer_id"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}
