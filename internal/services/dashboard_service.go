package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gawangliliw/sellerhub/internal/analytics"
	"gawangliliw/sellerhub/internal/cache"
	"gawangliliw/sellerhub/internal/config"
	"gawangliliw/sellerhub/internal/export"
	"gawangliliw/sellerhub/internal/logger"
	"gawangliliw/sellerhub/internal/metrics"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/storage"
	"gawangliliw/sellerhub/internal/utils"
)

// ExportedReport is a workbook already placed in the file store.
type ExportedReport struct {
	Key      string `json:"key"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// IDashboardService computes the staff dashboard figures and exports them.
type IDashboardService interface {
	SalesSummary(ctx context.Context, sellerID utils.SixID, period analytics.Period) (*analytics.SalesSummary, error)
	ExportReport(ctx context.Context, sellerID utils.SixID, period analytics.Period) ([]byte, string, error)
	ExportToStore(ctx context.Context, sellerID utils.SixID, period analytics.Period) (*ExportedReport, error)
}

type dashboardService struct {
	cfg     *config.Config
	orders  IOrderService
	sellers ISellerService
	cache   cache.ViewCache
	files   storage.IFileStore
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewDashboardService(cfg *config.Config, orders IOrderService, sellers ISellerService, viewCache cache.ViewCache, files storage.IFileStore, m *metrics.Metrics) IDashboardService {
	loc := cfg.Location()
	return &dashboardService{
		cfg:     cfg,
		orders:  orders,
		sellers: sellers,
		cache:   viewCache,
		files:   files,
		metrics: m,
		now:     func() time.Time { return time.Now().In(loc) },
	}
}

func summaryCacheKey(sellerID utils.SixID, period analytics.Period, from time.Time) string {
	return fmt.Sprintf("dashboard:%s:%s:%s", sellerID, period, from.Format("2006-01-02T15"))
}

func (s *dashboardService) compute(ctx context.Context, sellerID utils.SixID, period analytics.Period, now time.Time) (*analytics.SalesSummary, []models.Order, error) {
	from, to := analytics.Window(period, now)
	orders, err := s.orders.SalesBetween(ctx, sellerID, from, to)
	if err != nil {
		return nil, nil, err
	}
	summary := analytics.Aggregate(orders, period, now, analytics.DefaultTopProducts)
	return &summary, orders, nil
}

// SalesSummary serves from the view cache when it can. Cache failures are
// logged and fall through to a fresh computation.
func (s *dashboardService) SalesSummary(ctx context.Context, sellerID utils.SixID, period analytics.Period) (*analytics.SalesSummary, error) {
	now := s.now()
	from, _ := analytics.Window(period, now)
	key := summaryCacheKey(sellerID, period, from)

	var cached analytics.SalesSummary
	err := s.cache.GetJSON(ctx, key, &cached)
	switch {
	case err == nil:
		s.metrics.CacheResult(true)
		return &cached, nil
	case !errors.Is(err, cache.ErrMiss):
		logger.Log.Warn("dashboard_cache_get_failed", zap.String("key", key), zap.Error(err))
	}
	s.metrics.CacheResult(false)

	summary, _, err := s.compute(ctx, sellerID, period, now)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, summary, s.cfg.GetCacheTTL); err != nil {
		logger.Log.Warn("dashboard_cache_set_failed", zap.String("key", key), zap.Error(err))
	}
	return summary, nil
}

// ExportReport builds the workbook for the period and returns it with a
// suggested filename.
func (s *dashboardService) ExportReport(ctx context.Context, sellerID utils.SixID, period analytics.Period) ([]byte, string, error) {
	now := s.now()
	summary, orders, err := s.compute(ctx, sellerID, period, now)
	if err != nil {
		return nil, "", err
	}
	storeName := sellerID.String()
	if seller, err := s.sellers.GetProfile(ctx, sellerID); err == nil && seller.StoreName != "" {
		storeName = seller.StoreName
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}

	data, err := export.WriteXLSX(export.Report{
		StoreName:   storeName,
		Currency:    s.cfg.CurrencyCode,
		GeneratedAt: now,
		Location:    s.cfg.Location(),
		Orders:      orders,
		Summary:     *summary,
	})
	if err != nil {
		return nil, "", err
	}
	return data, export.Filename(storeName, period, now), nil
}

// ExportToStore uploads the workbook and resolves a download URL.
func (s *dashboardService) ExportToStore(ctx context.Context, sellerID utils.SixID, period analytics.Period) (*ExportedReport, error) {
	data, filename, err := s.ExportReport(ctx, sellerID, period)
	if err != nil {
		return nil, err
	}
	key := storage.ReportKey(sellerID.String(), string(period))
	if err := s.files.Upload(ctx, key, data, export.ContentType); err != nil {
		return nil, err
	}
	url, err := s.files.ResolveURL(ctx, key)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("report_exported", zap.String("seller_id", sellerID.String()), zap.String("key", key))
	return &ExportedReport{Key: key, URL: url, Filename: filename}, nil
}
