package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gawangliliw/sellerhub/internal/api/middleware"
	"gawangliliw/sellerhub/internal/config"
	"gawangliliw/sellerhub/internal/logger"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/services"
	"gawangliliw/sellerhub/internal/tasks"
	"gawangliliw/sellerhub/internal/utils"
)

// RestSellerHandler serves the account and settings pages.
type RestSellerHandler struct {
	cfg        *config.Config
	account    services.IAccountService
	sellers    services.ISellerService
	taskClient IAsynqClient
}

func NewRestSellerHandler(cfg *config.Config, account services.IAccountService, sellers services.ISellerService, taskClient IAsynqClient) *RestSellerHandler {
	return &RestSellerHandler{cfg: cfg, account: account, sellers: sellers, taskClient: taskClient}
}

type upload struct {
	filename    string
	contentType string
	data        []byte
}

// readUpload reads the multipart "file" field, bounded by maxMB.
func readUpload(c *gin.Context, maxMB int) (*upload, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file"})
		return nil, false
	}
	limit := int64(maxMB) * 1024 * 1024
	if fh.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("File exceeds %d MB", maxMB)})
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if int64(len(data)) > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("File exceeds %d MB", maxMB)})
		return nil, false
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &upload{filename: fh.Filename, contentType: contentType, data: data}, true
}

// enqueueImage schedules normalisation of an uploaded image. Failure to
// enqueue leaves the original in place and is only logged.
func enqueueImage(c *gin.Context, client IAsynqClient, key, contentType string, sellerID utils.SixID) {
	if !services.IsImage(contentType) {
		return
	}
	task, err := tasks.NewImageNormalizeTask(key, sellerID)
	if err == nil {
		_, err = client.EnqueueContext(c.Request.Context(), task)
	}
	if err != nil {
		logger.Log.Error("image_enqueue_failed", zap.String("key", key), zap.Error(err))
	}
}

// Me handles GET /v1/me
func (h *RestSellerHandler) Me(c *gin.Context) {
	user, err := h.account.Me(c.Request.Context(), middleware.SellerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

// GetProfile handles GET /v1/seller/profile
func (h *RestSellerHandler) GetProfile(c *gin.Context) {
	seller, err := h.sellers.GetProfile(c.Request.Context(), middleware.SellerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": seller})
}

// FollowerCount handles GET /v1/seller/followers/count
func (h *RestSellerHandler) FollowerCount(c *gin.Context) {
	n, err := h.sellers.FollowerCount(c.Request.Context(), middleware.SellerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": n})
}

// FileURL handles GET /v1/files/url?key=
func (h *RestSellerHandler) FileURL(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing key"})
		return
	}
	url, err := h.sellers.ResolveFileURL(c.Request.Context(), middleware.SellerID(c), key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": url})
}

// UploadPermit handles POST /v1/seller/permits/:kind
func (h *RestSellerHandler) UploadPermit(c *gin.Context) {
	up, ok := readUpload(c, h.cfg.UploadMaxSizeMB)
	if !ok {
		return
	}
	sellerID := middleware.SellerID(c)
	doc, err := h.sellers.UploadPermit(c.Request.Context(), sellerID, models.PermitKind(c.Param("kind")), up.filename, up.contentType, up.data)
	if err != nil {
		respondError(c, err)
		return
	}
	enqueueImage(c, h.taskClient, doc.FileKey, up.contentType, sellerID)
	c.JSON(http.StatusOK, gin.H{"data": doc})
}

// UploadPaymentQR handles POST /v1/seller/payment-methods/:provider/qr
func (h *RestSellerHandler) UploadPaymentQR(c *gin.Context) {
	up, ok := readUpload(c, h.cfg.ImageMaxSizeMB)
	if !ok {
		return
	}
	sellerID := middleware.SellerID(c)
	key, err := h.sellers.UploadPaymentQR(c.Request.Context(), sellerID, models.PaymentProvider(c.Param("provider")), up.filename, up.contentType, up.data)
	if err != nil {
		respondError(c, err)
		return
	}
	enqueueImage(c, h.taskClient, key, up.contentType, sellerID)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"key": key}})
}
