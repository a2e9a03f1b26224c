package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gawangliliw/sellerhub/internal/api/middleware"
	"gawangliliw/sellerhub/internal/config"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/services"
	"gawangliliw/sellerhub/internal/view"
)

// RestStoreHandler serves the promotions, transactions, reviews and
// announcements tables.
type RestStoreHandler struct {
	cfg           *config.Config
	promotions    services.IPromotionService
	orders        services.IOrderService
	reviews       services.IReviewService
	announcements services.IAnnouncementService
	now           func() time.Time
}

func NewRestStoreHandler(
	cfg *config.Config,
	promotions services.IPromotionService,
	orders services.IOrderService,
	reviews services.IReviewService,
	announcements services.IAnnouncementService,
) *RestStoreHandler {
	return &RestStoreHandler{
		cfg:           cfg,
		promotions:    promotions,
		orders:        orders,
		reviews:       reviews,
		announcements: announcements,
		now:           time.Now,
	}
}

// parseDateBound accepts RFC 3339 or a plain date in the configured zone.
// A plain "to" date covers that whole day.
func parseDateBound(raw string, loc *time.Location, end bool) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, false
	}
	if end {
		t = t.AddDate(0, 0, 1)
	}
	return t, true
}

// ListPromotions handles GET /v1/promotions?status=&page=&size=
func (h *RestStoreHandler) ListPromotions(c *gin.Context) {
	promos, err := h.promotions.List(c.Request.Context(), middleware.SellerID(c), models.PromoStatus(c.Query("status")), h.now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	page, size := pageParams(c, h.cfg.DefaultPageSize)
	c.JSON(http.StatusOK, gin.H{"data": view.Paginate(promos, page, size)})
}

// ListOrders handles GET /v1/orders?status=&from=&to=&q=&page=&size=
func (h *RestStoreHandler) ListOrders(c *gin.Context) {
	loc := h.cfg.Location()
	from, okFrom := parseDateBound(c.Query("from"), loc, false)
	to, okTo := parseDateBound(c.Query("to"), loc, true)
	if !okFrom || !okTo {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date; use YYYY-MM-DD or RFC 3339"})
		return
	}
	orders, err := h.orders.List(c.Request.Context(), middleware.SellerID(c), services.OrderFilter{
		Status: models.OrderStatus(c.Query("status")),
		From:   from,
		To:     to,
		Query:  c.Query("q"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	page, size := pageParams(c, h.cfg.DefaultPageSize)
	c.JSON(http.StatusOK, gin.H{"data": view.Paginate(orders, page, size)})
}

// StreamOrders handles GET /v1/stream/orders
func (h *RestStoreHandler) StreamOrders(c *gin.Context) {
	prepareStream(c)
	// The order feed has no snapshot event; open the stream now.
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()
	err := h.orders.WatchOrders(c.Request.Context(), middleware.SellerID(c), clientID(c),
		func(change services.OrderChange) error {
			return sendEvent(c, "order", change)
		})
	finishStream(c, err)
}

// ListReviews handles GET /v1/reviews?rating=&page=&size=
func (h *RestStoreHandler) ListReviews(c *gin.Context) {
	rating := 0
	if raw := c.Query("rating"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rating"})
			return
		}
		rating = v
	}
	reviews, err := h.reviews.List(c.Request.Context(), middleware.SellerID(c), rating)
	if err != nil {
		respondError(c, err)
		return
	}
	page, size := pageParams(c, h.cfg.DefaultPageSize)
	c.JSON(http.StatusOK, gin.H{"data": view.Paginate(reviews, page, size)})
}

// ReviewSummary handles GET /v1/reviews/summary
func (h *RestStoreHandler) ReviewSummary(c *gin.Context) {
	summary, err := h.reviews.Summary(c.Request.Context(), middleware.SellerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// ListAnnouncements handles GET /v1/announcements
func (h *RestStoreHandler) ListAnnouncements(c *gin.Context) {
	list, err := h.announcements.ListActive(c.Request.Context(), h.now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}
