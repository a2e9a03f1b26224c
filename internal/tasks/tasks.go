package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // seller uploads are JPEG or PNG
	"time"

	"github.com/adhocore/gronx"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gawangliliw/sellerhub/internal/analytics"
	"gawangliliw/sellerhub/internal/config"
	"gawangliliw/sellerhub/internal/logger"
	"gawangliliw/sellerhub/internal/metrics"
	"gawangliliw/sellerhub/internal/services"
	"gawangliliw/sellerhub/internal/storage"
	"gawangliliw/sellerhub/internal/utils"
)

// Task types.
const (
	TypeImageNormalize = "image:normalize"
	TypeReportExport   = "report:export"
	TypePromoRefresh   = "promo:refresh_status"
)

// Queues.
const (
	QueueDefault = "default"
	QueueImages  = "images"
	QueueReports = "reports"
)

// ReportRetention is how long a finished export keeps its result for polling.
const ReportRetention = 24 * time.Hour

// ErrImageRejected marks uploads that can never be normalised.
var ErrImageRejected = errors.New("image rejected")

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
}

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

func NewInspector(rdb *redis.Client) *asynq.Inspector {
	return asynq.NewInspector(redisOpt(rdb))
}

// ImageTaskPayload names an uploaded image to normalise in place.
type ImageTaskPayload struct {
	Key      string `json:"key"`
	SellerID string `json:"seller_id"`
}

// ReportTaskPayload asks for a sales workbook of one seller and period.
type ReportTaskPayload struct {
	SellerID string `json:"seller_id"`
	Period   string `json:"period"`
}

func NewImageNormalizeTask(key string, sellerID utils.SixID) (*asynq.Task, error) {
	payload, err := json.Marshal(ImageTaskPayload{Key: key, SellerID: sellerID.String()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeImageNormalize, payload, asynq.Queue(QueueImages), asynq.MaxRetry(5)), nil
}

func NewReportExportTask(sellerID utils.SixID, period analytics.Period) (*asynq.Task, error) {
	payload, err := json.Marshal(ReportTaskPayload{SellerID: sellerID.String(), Period: string(period)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReportExport, payload,
		asynq.Queue(QueueReports), asynq.MaxRetry(3), asynq.Retention(ReportRetention)), nil
}

func NewPromoRefreshTask() *asynq.Task {
	return asynq.NewTask(TypePromoRefresh, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

// --- Task Server (Processing tasks) ---

// TaskProcessor holds the dependencies of the task handlers.
type TaskProcessor struct {
	cfg        *config.Config
	files      storage.IFileStore
	dashboard  services.IDashboardService
	promotions services.IPromotionService
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewTaskProcessor(
	cfg *config.Config,
	files storage.IFileStore,
	dashboard services.IDashboardService,
	promotions services.IPromotionService,
	m *metrics.Metrics,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:        cfg,
		files:      files,
		dashboard:  dashboard,
		promotions: promotions,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Mux routes every task type to its handler, counting outcomes.
func (p *TaskProcessor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(p.observe)
	mux.HandleFunc(TypeImageNormalize, p.HandleImageNormalizeTask)
	mux.HandleFunc(TypeReportExport, p.HandleReportExportTask)
	mux.HandleFunc(TypePromoRefresh, p.HandlePromoRefreshTask)
	return mux
}

func (p *TaskProcessor) observe(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, t)
		p.metrics.TaskOutcome(t.Type(), err)
		if err != nil {
			logger.Log.Warn("task_failed", zap.String("type", t.Type()), zap.Duration("took", time.Since(start)), zap.Error(err))
		} else {
			logger.Log.Debug("task_done", zap.String("type", t.Type()), zap.Duration("took", time.Since(start)))
		}
		return err
	})
}

// NewServer configures the asynq worker server. The caller runs it with
// Start(mux) and stops it with Shutdown.
func NewServer(rdb *redis.Client) *asynq.Server {
	return asynq.NewServer(redisOpt(rdb), asynq.Config{
		Queues: map[string]int{
			QueueReports: 4,
			QueueImages:  3,
			QueueDefault: 2,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Log.Error("task_error",
				zap.String("type", task.Type()),
				zap.ByteString("payload", task.Payload()),
				zap.Int("retried", retried),
				zap.Int("max_retry", maxRetry),
				zap.Error(err))
		}),
	})
}

// NewScheduler registers the periodic promotion status refresh.
func NewScheduler(rdb *redis.Client, cfg *config.Config) (*asynq.Scheduler, error) {
	spec := cfg.PromoRefreshCron
	scheduler := asynq.NewScheduler(redisOpt(rdb), &asynq.SchedulerOpts{
		Location: cfg.Location(),
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				logger.Log.Error("schedule_enqueue_failed", zap.String("cron", spec), zap.Error(err))
				return
			}
			fields := []zap.Field{zap.String("task_id", info.ID), zap.String("type", info.Type)}
			if next, err := NextRun(spec, time.Now().In(cfg.Location())); err == nil {
				fields = append(fields, zap.Time("next_run", next))
			}
			logger.Log.Info("schedule_enqueued", fields...)
		},
	})
	if _, err := scheduler.Register(spec, NewPromoRefreshTask()); err != nil {
		return nil, fmt.Errorf("failed to register %s on %q: %w", TypePromoRefresh, spec, err)
	}
	return scheduler, nil
}

// NextRun is the first tick of the cron expression strictly after ref.
func NextRun(spec string, ref time.Time) (time.Time, error) {
	if !gronx.IsValid(spec) {
		return time.Time{}, fmt.Errorf("invalid cron expression %q", spec)
	}
	return gronx.NextTickAfter(spec, ref, false)
}

// --- Task Handlers ---

// NormalizeImage bounds an image to maxDim on its longer side. It returns
// the original bytes untouched when no resize is needed. Oversized or
// undecodable input wraps ErrImageRejected.
func NormalizeImage(data []byte, contentType string, maxDim int, maxBytes int64) ([]byte, string, bool, error) {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", false, fmt.Errorf("%w: %d bytes exceeds %d", ErrImageRejected, len(data), maxBytes)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", false, fmt.Errorf("%w: %v", ErrImageRejected, err)
	}
	bounds := img.Bounds()
	if maxDim <= 0 || (bounds.Dx() <= maxDim && bounds.Dy() <= maxDim) {
		if contentType == "" {
			contentType = "image/" + format
		}
		return data, contentType, false, nil
	}

	resized := resize.Thumbnail(uint(maxDim), uint(maxDim), img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, "", false, fmt.Errorf("failed to re-encode image: %w", err)
	}
	if maxBytes > 0 && int64(buf.Len()) > maxBytes {
		return nil, "", false, fmt.Errorf("%w: resized image still exceeds %d bytes", ErrImageRejected, maxBytes)
	}
	return buf.Bytes(), "image/jpeg", true, nil
}

// HandleImageNormalizeTask shrinks an uploaded image in place.
func (p *TaskProcessor) HandleImageNormalizeTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Key == "" {
		return fmt.Errorf("empty key in image task: %w", asynq.SkipRetry)
	}

	data, contentType, err := p.files.Download(ctx, payload.Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return fmt.Errorf("image %s not found: %w", payload.Key, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download image %s: %w", payload.Key, err)
	}

	out, outType, changed, err := NormalizeImage(data, contentType, p.cfg.ImageMaxDimension, int64(p.cfg.ImageMaxSizeMB)*1024*1024)
	if err != nil {
		if errors.Is(err, ErrImageRejected) {
			return fmt.Errorf("image %s: %v: %w", payload.Key, err, asynq.SkipRetry)
		}
		return err
	}
	if !changed {
		logger.Log.Debug("image_within_limits", zap.String("key", payload.Key))
		return nil
	}
	if err := p.files.Upload(ctx, payload.Key, out, outType); err != nil {
		return fmt.Errorf("failed to upload normalised image %s: %w", payload.Key, err)
	}
	logger.Log.Info("image_normalised",
		zap.String("key", payload.Key),
		zap.String("seller_id", payload.SellerID),
		zap.Int("from_bytes", len(data)),
		zap.Int("to_bytes", len(out)))
	return nil
}

// HandleReportExportTask writes the workbook to the file store and records
// its location as the task result.
func (p *TaskProcessor) HandleReportExportTask(ctx context.Context, t *asynq.Task) error {
	var payload ReportTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal report task payload: %v: %w", err, asynq.SkipRetry)
	}
	sellerID, err := utils.ParseSixID(payload.SellerID)
	if err != nil {
		return fmt.Errorf("invalid seller id %q: %w", payload.SellerID, asynq.SkipRetry)
	}
	period, err := analytics.ParsePeriod(payload.Period)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	report, err := p.dashboard.ExportToStore(ctx, sellerID, period)
	if err != nil {
		return fmt.Errorf("failed to export report for %s: %w", payload.SellerID, err)
	}
	if w := t.ResultWriter(); w != nil {
		result, err := json.Marshal(report)
		if err != nil {
			return err
		}
		if _, err := w.Write(result); err != nil {
			return fmt.Errorf("failed to record report result: %w", err)
		}
	}
	return nil
}

// HandlePromoRefreshTask stores the computed status of every promotion
// whose stored status is stale.
func (p *TaskProcessor) HandlePromoRefreshTask(ctx context.Context, _ *asynq.Task) error {
	n, err := p.promotions.RefreshStatuses(ctx, p.now())
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Log.Info("promotions_refreshed", zap.Int64("updated", n))
	}
	return nil
}

// ReportState is the polling view of an export task.
type ReportState struct {
	TaskID   string                   `json:"task_id"`
	SellerID string                   `json:"seller_id"`
	State    string                   `json:"state"`
	Report   *services.ExportedReport `json:"report,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// LookupReport reads an export task back from the reports queue.
func LookupReport(insp *asynq.Inspector, taskID string) (*ReportState, error) {
	info, err := insp.GetTaskInfo(QueueReports, taskID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return reportState(info)
}

func reportState(info *asynq.TaskInfo) (*ReportState, error) {
	if info.Type != TypeReportExport {
		return nil, services.ErrNotFound
	}
	var payload ReportTaskPayload
	if err := json.Unmarshal(info.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode report payload: %w", err)
	}
	st := &ReportState{TaskID: info.ID, SellerID: payload.SellerID, State: info.State.String(), Error: info.LastErr}
	if info.State == asynq.TaskStateCompleted && len(info.Result) > 0 {
		var report services.ExportedReport
		if err := json.Unmarshal(info.Result, &report); err != nil {
			return nil, fmt.Errorf("failed to decode report result: %w", err)
		}
		st.Report = &report
	}
	return st, nil
}
