package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gawangliliw/sellerhub/internal/api/handlers"
	"gawangliliw/sellerhub/internal/auth"
	"gawangliliw/sellerhub/internal/config"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/services"
	"gawangliliw/sellerhub/internal/tasks"
	"gawangliliw/sellerhub/internal/utils"
)

// --- Test Setup ---

type apiDeps struct {
	account    *MockAccountService
	sellers    *MockSellerService
	messages   *MockMessageService
	promotions *MockPromotionService
	orders     *MockOrderService
	reviews    *MockReviewService
	taskClient *MockAsynqClient
}

func setupApiRouter() (*gin.Engine, *apiDeps) {
	gin.SetMode(gin.TestMode)
	d := &apiDeps{
		account:    new(MockAccountService),
		sellers:    new(MockSellerService),
		messages:   new(MockMessageService),
		promotions: new(MockPromotionService),
		orders:     new(MockOrderService),
		reviews:    new(MockReviewService),
		taskClient: new(MockAsynqClient),
	}
	cfg := &config.Config{DefaultPageSize: 10}
	h := handlers.NewJsonApiHandler(cfg, d.taskClient, d.account, d.sellers, d.messages, d.promotions, d.orders, d.reviews)
	r := gin.New()
	r.POST("/v1/api", h.HandleRequest)
	return r, d
}

// signedIn makes "tok" authenticate as sellerID.
func (d *apiDeps) signedIn(sellerID utils.SixID, isStaff bool) *auth.Claims {
	claims := &auth.Claims{UserID: sellerID.String(), IsStaff: isStaff}
	d.account.On("Authenticate", mock.Anything, "tok").Return(claims, nil)
	return claims
}

func callApi(t *testing.T, r http.Handler, token, method string, args ...interface{}) handlers.JsonApiResponse {
	t.Helper()
	body := map[string]interface{}{"method": method}
	if args != nil {
		body["arguments"] = args
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/api", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.JsonApiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// --- Tests ---

func TestJsonApiHandler_Ping(t *testing.T) {
	r, _ := setupApiRouter()
	resp := callApi(t, r, "", "ping")
	assert.True(t, resp.Success)
	assert.Equal(t, "pong", resp.Data)
	assert.Empty(t, resp.Error)
}

func TestJsonApiHandler_UnknownMethod(t *testing.T) {
	r, _ := setupApiRouter()
	resp := callApi(t, r, "", "launchRockets")
	assert.False(t, resp.Success)
	assert.Equal(t, "Unknown method: launchRockets", resp.Error)
}

func TestJsonApiHandler_SignIn(t *testing.T) {
	r, d := setupApiRouter()
	user := &models.User{Email: "shop@liliw.ph", Role: models.RoleSeller}
	user.GenID()
	d.account.On("SignIn", mock.Anything, "shop@liliw.ph", "Secret123").Return("jwt-token", user, nil).Once()
	d.account.On("SignIn", mock.Anything, "shop@liliw.ph", "wrong").Return("", nil, services.ErrInvalidCredentials).Once()

	resp := callApi(t, r, "", "signIn", handlers.SignInArgs{Email: "shop@liliw.ph", Password: "Secret123"})
	require.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "jwt-token", data["token"])
	assert.Equal(t, "shop@liliw.ph", data["user"].(map[string]interface{})["email"])

	resp = callApi(t, r, "", "signIn", handlers.SignInArgs{Email: "shop@liliw.ph", Password: "wrong"})
	assert.True(t, resp.Success)
	assert.Equal(t, false, resp.Data)
	d.account.AssertExpectations(t)
}

func TestJsonApiHandler_RequiresToken(t *testing.T) {
	r, d := setupApiRouter()
	resp := callApi(t, r, "", "signOut")
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)

	d.account.On("Authenticate", mock.Anything, "stale").Return(nil, auth.ErrInvalidToken)
	resp = callApi(t, r, "stale", "signOut")
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid or expired token", resp.Error)
}

func TestJsonApiHandler_SignOut(t *testing.T) {
	r, d := setupApiRouter()
	claims := d.signedIn(utils.NewSixID(), false)
	d.account.On("SignOut", mock.Anything, claims).Return(nil).Once()

	resp := callApi(t, r, "tok", "signOut")
	assert.True(t, resp.Success)
	assert.Equal(t, true, resp.Data)
	d.account.AssertExpectations(t)
}

func TestJsonApiHandler_ChangePassword(t *testing.T) {
	r, d := setupApiRouter()
	seller := utils.NewSixID()
	d.signedIn(seller, false)
	d.account.On("ChangePassword", mock.Anything, seller, "old", "NewSecret1").Return(nil).Once()
	d.account.On("ChangePassword", mock.Anything, seller, "bad", "NewSecret1").Return(services.ErrInvalidCredentials).Once()

	resp := callApi(t, r, "tok", "changePassword", handlers.ChangePasswordArgs{CurrentPassword: "old", NewPassword: "NewSecret1"})
	assert.True(t, resp.Success)
	assert.Equal(t, true, resp.Data)

	resp = callApi(t, r, "tok", "changePassword", handlers.ChangePasswordArgs{CurrentPassword: "bad", NewPassword: "NewSecret1"})
	assert.True(t, resp.Success)
	assert.Equal(t, false, resp.Data)

	resp = callApi(t, r, "tok", "changePassword", handlers.ChangePasswordArgs{CurrentPassword: "old"})
	assert.False(t, resp.Success)
	d.account.AssertExpectations(t)
}

func TestJsonApiHandler_ArgumentShape(t *testing.T) {
	r, d := setupApiRouter()
	d.signedIn(utils.NewSixID(), false)

	resp := callApi(t, r, "tok", "updateProfile")
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "Missing 'arguments'")

	resp = callApi(t, r, "tok", "sendMessage", handlers.SendMessageArgs{ConversationID: "not-an-id", Text: "hi"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid conversation id", resp.Error)
}

func TestJsonApiHandler_UpdateOrderStatus(t *testing.T) {
	r, d := setupApiRouter()
	seller := utils.NewSixID()
	orderID := utils.NewSixID()
	d.signedIn(seller, false)

	shipped := &models.Order{SellerID: seller, Status: models.OrderShipped}
	shipped.SetID(orderID)
	d.orders.On("UpdateStatus", mock.Anything, seller, orderID, models.OrderShipped).Return(shipped, nil).Once()
	d.orders.On("UpdateStatus", mock.Anything, seller, orderID, models.OrderPending).
		Return(nil, services.ErrInvalidTransition).Once()

	resp := callApi(t, r, "tok", "updateOrderStatus", handlers.UpdateOrderStatusArgs{OrderID: orderID.String(), Status: models.OrderShipped})
	require.True(t, resp.Success)
	assert.Equal(t, "shipped", resp.Data.(map[string]interface{})["status"])

	resp = callApi(t, r, "tok", "updateOrderStatus", handlers.UpdateOrderStatusArgs{OrderID: orderID.String(), Status: models.OrderPending})
	assert.False(t, resp.Success)
	assert.Equal(t, services.ErrInvalidTransition.Error(), resp.Error)
	d.orders.AssertExpectations(t)
}

func TestJsonApiHandler_DeletePromotionNotFound(t *testing.T) {
	r, d := setupApiRouter()
	seller := utils.NewSixID()
	promoID := utils.NewSixID()
	d.signedIn(seller, false)
	d.promotions.On("Delete", mock.Anything, seller, promoID).Return(services.ErrNotFound).Once()

	resp := callApi(t, r, "tok", "deletePromotion", handlers.IDArgs{ID: promoID.String()})
	assert.False(t, resp.Success)
	assert.Equal(t, "Not found", resp.Error)
}

func TestJsonApiHandler_InternalErrorsAreMasked(t *testing.T) {
	r, d := setupApiRouter()
	seller := utils.NewSixID()
	reviewID := utils.NewSixID()
	d.signedIn(seller, false)
	d.reviews.On("VoteHelpful", mock.Anything, seller, reviewID).Return(0, errors.New("connection reset by peer")).Once()

	resp := callApi(t, r, "tok", "voteReviewHelpful", handlers.ReviewArgs{ReviewID: reviewID.String()})
	assert.False(t, resp.Success)
	assert.Equal(t, "Internal error", resp.Error)
}

func TestJsonApiHandler_RequestSalesReport(t *testing.T) {
	r, d := setupApiRouter()
	seller := utils.NewSixID()
	d.signedIn(seller, false)

	isReportTask := mock.MatchedBy(func(task *asynq.Task) bool {
		var p tasks.ReportTaskPayload
		return task.Type() == tasks.TypeReportExport &&
			json.Unmarshal(task.Payload(), &p) == nil &&
			p.SellerID == seller.String() && p.Period == "week"
	})
	d.taskClient.On("EnqueueContext", mock.Anything, isReportTask).Return(&asynq.TaskInfo{ID: "task-1"}, nil).Once()

	resp := callApi(t, r, "tok", "requestSalesReport", handlers.SalesReportArgs{Period: "week"})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "task-1", resp.Data.(map[string]interface{})["task_id"])

	other := utils.NewSixID()
	resp = callApi(t, r, "tok", "requestSalesReport", handlers.SalesReportArgs{Period: "week", SellerID: other.String()})
	assert.False(t, resp.Success)
	assert.Equal(t, "Forbidden", resp.Error)

	resp = callApi(t, r, "tok", "requestSalesReport", handlers.SalesReportArgs{Period: "fortnight"})
	assert.False(t, resp.Success)
	d.taskClient.AssertExpectations(t)
}

func TestJsonApiHandler_StaffReportForAnySeller(t *testing.T) {
	r, d := setupApiRouter()
	d.signedIn(utils.NewSixID(), true)
	target := utils.NewSixID()

	d.taskClient.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		var p tasks.ReportTaskPayload
		return json.Unmarshal(task.Payload(), &p) == nil && p.SellerID == target.String()
	})).Return(&asynq.TaskInfo{ID: "task-2"}, nil).Once()

	resp := callApi(t, r, "tok", "requestSalesReport", handlers.SalesReportArgs{Period: "year", SellerID: target.String()})
	require.True(t, resp.Success, resp.Error)
	d.taskClient.AssertExpectations(t)
}
