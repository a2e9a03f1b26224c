package storage

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// SanitizeFilename keeps the base name and replaces characters that would
// be awkward in an object key.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

func uniqueName(filename string) string {
	return uuid.NewString() + "_" + SanitizeFilename(filename)
}

// PermitKey is where a seller's permit document of the given kind lives.
func PermitKey(sellerID, kind, filename string) string {
	return fmt.Sprintf("sellers/%s/permits/%s/%s", sellerID, kind, uniqueName(filename))
}

// PaymentQRKey is where a payment provider's QR image lives.
func PaymentQRKey(sellerID, provider, filename string) string {
	return fmt.Sprintf("sellers/%s/payment/%s/%s", sellerID, provider, uniqueName(filename))
}

// AttachmentKey is where a chat attachment lives.
func AttachmentKey(conversationID, filename string) string {
	return fmt.Sprintf("conversations/%s/%s", conversationID, uniqueName(filename))
}

// UploadKey is the target of a browser-direct presigned upload.
func UploadKey(sellerID, filename string) string {
	return fmt.Sprintf("sellers/%s/uploads/%s", sellerID, uniqueName(filename))
}

// ReportKey is where an exported sales workbook lives.
func ReportKey(sellerID, period string) string {
	return fmt.Sprintf("reports/%s/%s_%s.xlsx", sellerID, period, uuid.NewString())
}

// OwnedBy reports whether key sits under the seller's own prefix.
func OwnedBy(key, sellerID string) bool {
	return strings.HasPrefix(key, "sellers/"+sellerID+"/") || strings.HasPrefix(key, "reports/"+sellerID+"/")
}
