package handlers_test

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"gawangliliw/sellerhub/internal/analytics"
	"gawangliliw/sellerhub/internal/auth"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/services"
	"gawangliliw/sellerhub/internal/utils"
)

// --- Mocks ---

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) SignIn(ctx context.Context, email, password string) (string, *models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*models.User), args.Error(2)
}

func (m *MockAccountService) SignOut(ctx context.Context, claims *auth.Claims) error {
	return m.Called(ctx, claims).Error(0)
}

func (m *MockAccountService) RefreshToken(ctx context.Context, claims *auth.Claims) (string, error) {
	args := m.Called(ctx, claims)
	return args.String(0), args.Error(1)
}

func (m *MockAccountService) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}

func (m *MockAccountService) Me(ctx context.Context, userID utils.SixID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAccountService) ChangePassword(ctx context.Context, userID utils.SixID, current, next string) error {
	return m.Called(ctx, userID, current, next).Error(0)
}

func (m *MockAccountService) Register(ctx context.Context, email, password string, role models.Role) (*models.User, error) {
	args := m.Called(ctx, email, password, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockSellerService struct {
	mock.Mock
}

func (m *MockSellerService) GetProfile(ctx context.Context, sellerID utils.SixID) (*models.Seller, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Seller), args.Error(1)
}

func (m *MockSellerService) UpdateProfile(ctx context.Context, sellerID utils.SixID, fields map[string]interface{}) (*models.Seller, error) {
	args := m.Called(ctx, sellerID, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Seller), args.Error(1)
}

func (m *MockSellerService) FollowerCount(ctx context.Context, sellerID utils.SixID) (int64, error) {
	args := m.Called(ctx, sellerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSellerService) UploadPermit(ctx context.Context, sellerID utils.SixID, kind models.PermitKind, filename, contentType string, data []byte) (*models.PermitDocument, error) {
	args := m.Called(ctx, sellerID, kind, filename, contentType, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PermitDocument), args.Error(1)
}

func (m *MockSellerService) UpdateSettings(ctx context.Context, sellerID utils.SixID, fields map[string]interface{}) (*models.Seller, error) {
	args := m.Called(ctx, sellerID, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Seller), args.Error(1)
}

func (m *MockSellerService) SetPaymentMethod(ctx context.Context, sellerID utils.SixID, provider models.PaymentProvider, accountName, accountNumber string) (*models.PaymentMethod, error) {
	args := m.Called(ctx, sellerID, provider, accountName, accountNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentMethod), args.Error(1)
}

func (m *MockSellerService) UploadPaymentQR(ctx context.Context, sellerID utils.SixID, provider models.PaymentProvider, filename, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, sellerID, provider, filename, contentType, data)
	return args.String(0), args.Error(1)
}

func (m *MockSellerService) ResolveFileURL(ctx context.Context, sellerID utils.SixID, key string) (string, error) {
	args := m.Called(ctx, sellerID, key)
	return args.String(0), args.Error(1)
}

func (m *MockSellerService) PresignUpload(ctx context.Context, sellerID utils.SixID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, sellerID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) ListInbox(ctx context.Context, sellerID utils.SixID) ([]models.Conversation, error) {
	args := m.Called(ctx, sellerID)
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *MockMessageService) ListMessages(ctx context.Context, sellerID, conversationID utils.SixID) ([]models.Message, error) {
	args := m.Called(ctx, sellerID, conversationID)
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageService) SendMessage(ctx context.Context, sellerID, conversationID utils.SixID, text string, attachments []models.Attachment) (*models.Message, error) {
	args := m.Called(ctx, sellerID, conversationID, text, attachments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) UploadAttachment(ctx context.Context, sellerID, conversationID utils.SixID, filename, contentType string, data []byte) (*models.Attachment, error) {
	args := m.Called(ctx, sellerID, conversationID, filename, contentType, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

func (m *MockMessageService) MarkRead(ctx context.Context, sellerID, conversationID utils.SixID) (int64, error) {
	args := m.Called(ctx, sellerID, conversationID)
	return args.Get(0).(int64), args.Error(1)
}

// WatchConversation emits the configured changes, then returns the
// configured error.
func (m *MockMessageService) WatchConversation(ctx context.Context, sellerID, conversationID utils.SixID, clientID string, emit func(services.ThreadChange) error) error {
	args := m.Called(ctx, sellerID, conversationID, clientID)
	for _, batch := range args.Get(0).([]services.ThreadChange) {
		if err := emit(batch); err != nil {
			return err
		}
	}
	return args.Error(1)
}

func (m *MockMessageService) WatchInbox(ctx context.Context, sellerID utils.SixID, clientID string, emit func([]models.Conversation) error) error {
	args := m.Called(ctx, sellerID, clientID)
	for _, batch := range args.Get(0).([][]models.Conversation) {
		if err := emit(batch); err != nil {
			return err
		}
	}
	return args.Error(1)
}

type MockPromotionService struct {
	mock.Mock
}

func (m *MockPromotionService) List(ctx context.Context, sellerID utils.SixID, status models.PromoStatus, now time.Time) ([]models.Promotion, error) {
	args := m.Called(ctx, sellerID, status, now)
	return args.Get(0).([]models.Promotion), args.Error(1)
}

func (m *MockPromotionService) Create(ctx context.Context, sellerID utils.SixID, in services.PromotionInput) (*models.Promotion, error) {
	args := m.Called(ctx, sellerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Promotion), args.Error(1)
}

func (m *MockPromotionService) Update(ctx context.Context, sellerID, promotionID utils.SixID, in services.PromotionInput) (*models.Promotion, error) {
	args := m.Called(ctx, sellerID, promotionID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Promotion), args.Error(1)
}

func (m *MockPromotionService) Delete(ctx context.Context, sellerID, promotionID utils.SixID) error {
	return m.Called(ctx, sellerID, promotionID).Error(0)
}

func (m *MockPromotionService) RefreshStatuses(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) List(ctx context.Context, sellerID utils.SixID, f services.OrderFilter) ([]models.Order, error) {
	args := m.Called(ctx, sellerID, f)
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, sellerID, orderID utils.SixID, status models.OrderStatus) (*models.Order, error) {
	args := m.Called(ctx, sellerID, orderID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderService) SalesBetween(ctx context.Context, sellerID utils.SixID, from, to time.Time) ([]models.Order, error) {
	args := m.Called(ctx, sellerID, from, to)
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderService) WatchOrders(ctx context.Context, sellerID utils.SixID, clientID string, emit func(services.OrderChange) error) error {
	args := m.Called(ctx, sellerID, clientID)
	for _, change := range args.Get(0).([]services.OrderChange) {
		if err := emit(change); err != nil {
			return err
		}
	}
	return args.Error(1)
}

type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) List(ctx context.Context, sellerID utils.SixID, rating int) ([]models.Review, error) {
	args := m.Called(ctx, sellerID, rating)
	return args.Get(0).([]models.Review), args.Error(1)
}

func (m *MockReviewService) Summary(ctx context.Context, sellerID utils.SixID) (*models.RatingSummary, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RatingSummary), args.Error(1)
}

func (m *MockReviewService) VoteHelpful(ctx context.Context, sellerID, reviewID utils.SixID) (int, error) {
	args := m.Called(ctx, sellerID, reviewID)
	return args.Int(0), args.Error(1)
}

type MockAnnouncementService struct {
	mock.Mock
}

func (m *MockAnnouncementService) ListActive(ctx context.Context, now time.Time) ([]models.Announcement, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]models.Announcement), args.Error(1)
}

type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) SalesSummary(ctx context.Context, sellerID utils.SixID, period analytics.Period) (*analytics.SalesSummary, error) {
	args := m.Called(ctx, sellerID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analytics.SalesSummary), args.Error(1)
}

func (m *MockDashboardService) ExportReport(ctx context.Context, sellerID utils.SixID, period analytics.Period) ([]byte, string, error) {
	args := m.Called(ctx, sellerID, period)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func (m *MockDashboardService) ExportToStore(ctx context.Context, sellerID utils.SixID, period analytics.Period) (*services.ExportedReport, error) {
	args := m.Called(ctx, sellerID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ExportedReport), args.Error(1)
}

type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}
