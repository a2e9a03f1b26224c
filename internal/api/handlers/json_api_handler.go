package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gawangliliw/sellerhub/internal/analytics"
	"gawangliliw/sellerhub/internal/api/middleware"
	"gawangliliw/sellerhub/internal/auth"
	"gawangliliw/sellerhub/internal/config"
	"gawangliliw/sellerhub/internal/logger"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/services"
	"gawangliliw/sellerhub/internal/tasks"
	"gawangliliw/sellerhub/internal/utils"
)

type authContextKey string

const authResultKey authContextKey = "authResult"

// AuthResult is the caller of an authenticated method.
type AuthResult struct {
	SellerID utils.SixID
	IsStaff  bool
	Claims   *auth.Claims
}

func getAuthFromContext(ctx context.Context) (*AuthResult, bool) {
	val, ok := ctx.Value(authResultKey).(*AuthResult)
	return val, ok
}

// JsonApiRequest defines the expected structure for JSON API requests.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse defines the structure for JSON API responses.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type ApiError struct {
	Message string
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(message string) *ApiError {
	return &ApiError{Message: message}
}

type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

type apiMethod struct {
	fn     apiMethodFunc
	public bool
}

// JsonApiHandler serves every mutation of the dashboard through POST /v1/api.
type JsonApiHandler struct {
	cfg        *config.Config
	taskClient IAsynqClient
	account    services.IAccountService
	sellers    services.ISellerService
	messages   services.IMessageService
	promotions services.IPromotionService
	orders     services.IOrderService
	reviews    services.IReviewService
	methods    map[string]apiMethod
}

func NewJsonApiHandler(
	cfg *config.Config,
	taskClient IAsynqClient,
	account services.IAccountService,
	sellers services.ISellerService,
	messages services.IMessageService,
	promotions services.IPromotionService,
	orders services.IOrderService,
	reviews services.IReviewService,
) *JsonApiHandler {
	h := &JsonApiHandler{
		cfg:        cfg,
		taskClient: taskClient,
		account:    account,
		sellers:    sellers,
		messages:   messages,
		promotions: promotions,
		orders:     orders,
		reviews:    reviews,
	}
	h.methods = map[string]apiMethod{
		"ping":                 {fn: h.ping, public: true},
		"signIn":               {fn: h.signIn, public: true},
		"signOut":              {fn: h.signOut},
		"refreshToken":         {fn: h.refreshToken},
		"changePassword":       {fn: h.changePassword},
		"updateProfile":        {fn: h.updateProfile},
		"updateSettings":       {fn: h.updateSettings},
		"setPaymentMethod":     {fn: h.setPaymentMethod},
		"getUploadURL":         {fn: h.getUploadURL},
		"sendMessage":          {fn: h.sendMessage},
		"markConversationRead": {fn: h.markConversationRead},
		"createPromotion":      {fn: h.createPromotion},
		"updatePromotion":      {fn: h.updatePromotion},
		"deletePromotion":      {fn: h.deletePromotion},
		"updateOrderStatus":    {fn: h.updateOrderStatus},
		"voteReviewHelpful":    {fn: h.voteReviewHelpful},
		"requestSalesReport":   {fn: h.requestSalesReport},
	}
	return h
}

// HandleRequest is the main entry point for POST /v1/api
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.sendErrorResponse(c, "Failed to read request body")
		return
	}

	var req JsonApiRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		h.sendErrorResponse(c, "Invalid JSON request format")
		return
	}

	method, ok := h.methods[req.Method]
	if !ok {
		h.sendErrorResponse(c, fmt.Sprintf("Unknown method: %s", req.Method))
		return
	}
	if !method.public {
		if apiErr := h.authenticate(c); apiErr != nil {
			h.sendErrorResponse(c, apiErr.Message)
			return
		}
	}

	result, apiErr := method.fn(c, req.Arguments)
	if apiErr != nil {
		h.sendErrorResponse(c, apiErr.Message)
		return
	}
	h.sendSuccessResponse(c, result)
}

// authenticate validates the bearer token and stores the AuthResult in the
// request context.
func (h *JsonApiHandler) authenticate(c *gin.Context) *ApiError {
	token, err := middleware.BearerToken(c)
	if err != nil {
		return NewApiError(err.Error())
	}
	claims, err := h.account.Authenticate(c.Request.Context(), token)
	if err != nil {
		logger.Log.Debug("api_token_rejected", zap.Error(err))
		return NewApiError("Invalid or expired token")
	}
	sellerID, err := claims.SellerID()
	if err != nil {
		return NewApiError("Invalid or expired token")
	}
	ctx := context.WithValue(c.Request.Context(), authResultKey, &AuthResult{SellerID: sellerID, IsStaff: claims.IsStaff, Claims: claims})
	c.Request = c.Request.WithContext(ctx)
	return nil
}

func (h *JsonApiHandler) caller(c *gin.Context) (*AuthResult, *ApiError) {
	authInfo, ok := getAuthFromContext(c.Request.Context())
	if !ok {
		return nil, NewApiError("Authentication required")
	}
	return authInfo, nil
}

func (h *JsonApiHandler) sendSuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, JsonApiResponse{Success: true, Data: data})
}

func (h *JsonApiHandler) sendErrorResponse(c *gin.Context, message string) {
	c.JSON(http.StatusOK, JsonApiResponse{Success: false, Error: message})
}

// parseRequiredSingleArgFromArray decodes arguments[0] into targetVarPtr.
func (h *JsonApiHandler) parseRequiredSingleArgFromArray(rawArgPayload json.RawMessage, targetVarPtr interface{}) *ApiError {
	if rawArgPayload == nil {
		return NewApiError("Missing 'arguments' field; expected a JSON array with one argument.")
	}
	var argArray []json.RawMessage
	if err := json.Unmarshal(rawArgPayload, &argArray); err != nil {
		return NewApiError("Invalid 'arguments': expected a JSON array.")
	}
	if len(argArray) == 0 {
		return NewApiError("Invalid 'arguments': array is empty, but one argument is expected.")
	}
	if err := json.Unmarshal(argArray[0], targetVarPtr); err != nil {
		return NewApiError("Invalid format for argument: the first element in 'arguments' array has unexpected structure.")
	}
	return nil
}

func parseID(raw, what string) (utils.SixID, *ApiError) {
	id, err := utils.ParseSixID(raw)
	if err != nil {
		return utils.SixID{}, NewApiError("Invalid " + what)
	}
	return id, nil
}

// --- Account ---

func (h *JsonApiHandler) ping(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	_ = args
	return "pong", nil
}

type SignInArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignInResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// signIn answers false for any bad credential so accounts cannot be probed.
func (h *JsonApiHandler) signIn(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var reqArgs SignInArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	token, user, err := h.account.SignIn(c.Request.Context(), reqArgs.Email, reqArgs.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return false, nil
		}
		return nil, apiErrorFor(err)
	}
	return SignInResult{Token: token, User: user}, nil
}

func (h *JsonApiHandler) signOut(c *gin.Context, _ json.RawMessage) (interface{}, *ApiError) {
	authInfo, apiErr := h.caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	if err := h.account.SignOut(c.Request.Context(), authInfo.Claims); err != nil {
		return nil, apiErrorFor(err)
	}
	return true, nil
}

func (h *JsonApiHandler) refreshToken(c *gin.Context, _ json.RawMessage) (interface{}, *ApiError) {
	authInfo, apiErr := h.caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	token, err := h.account.RefreshToken(c.Request.Context(), authInfo.Claims)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return nil, NewApiError("Invalid or expired token")
		}
		return nil, apiErrorFor(err)
	}
	return token, nil
}

// ChangePasswordArgs defines the arguments for the changePassword method
type ChangePasswordArgs struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *JsonApiHandler) changePassword(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, apiErr := h.caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs ChangePasswordArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if reqArgs.CurrentPassword == "" || reqArgs.NewPassword == "" {
		return nil, NewApiError("Current and new password are required")
	}
	err := h.account.ChangePassword(c.Request.Context(), authInfo.SellerID, reqArgs.CurrentPassword, reqArgs.NewPassword)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return false, nil
		}
		return nil, apiErrorFor(err)
	}
	return true, nil
}

// --- Profile and settings ---

func (h *JsonApiHandler) updateProfile(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, apiErr := h.caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var fields map[string]interface{}
	if apiErr := h.parseRequiredSingleArgFromArray(args, &fields); apiErr != nil {
		return nil, apiErr
	}
	seller, err := h.sellers.UpdateProfile(c.Request.Context(), authInfo.SellerID, fields)
	if err != nil {
		return nil, apiErrorFor(err)
	}
	return seller, nil
}

func (h *JsonApiHandler) updateSettings(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, apiErr := h.caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var fields map[string]interface{}
	if apiErr := h.parseRequiredSingleArgFromArray(args, &fields); apiErr != nil {
		return nil, apiErr
	}
	seller, err := h.sellers.UpdateSettings(c.Request.Context(), authInfo.SellerID, fields)
	if err != nil {
		return nil, apiErrorFor(err)
	}
	return seller.Settings, nil
}

type SetPaymentMethodArgs struct {
	Provider      models.PaymentProvider `json:"provider"`
	AccountName   string                 `json:"account_name"`
	AccountNumber string                 `json:"account_number"`
}

func (h *JsonApiHandler) setPaymentMethod(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, apiErr := h.caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs SetPaymentMethodArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	pm, err := h.sellers.SetPaymentMethod(c.Request.Context(), authInfo.SellerID, reqArgs.Provider, reqArgs.AccountName, reqArgs.AccountNumber)
	if err != nil {
		return nil, apiErrorFor(err)
	}
	return pm, nil
}

type GetUploadURLArgs struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type GetUploadURLResult struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

func (h *JsonApiHandler) getUploadURL(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, apiErr := h.caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs GetUploadURLArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	if reqArgs.Filename == "" {
		return nil, NewApiError("Filename is required")
	}
	url, key, err := h.sellers.PresignUpload(c.Request.Context(), authInfo.SellerID, reqArgs.Filename, reqArgs.ContentType)
	if err != nil {
		return nil, apiErrorFor(err)
	}
	return GetUploadURLResult{URL: url, Key: key}, nil
}

// --- Messages ---

type SendMessageArgs struct {
	ConversationID string              `json:"conversation_id"`
	Text           string              `json:"text"`
	Attachments    []models.Attachment `json:"attachments"`
}

func (h *JsonApiHandler) sendMessage(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, apiErr := h.caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs SendMessageArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	conversationID, apiErr := parseID(reqArgs.ConversationID, "conversation id")
	if apiErr != nil {
		return nil, apiErr
	}
	msg, err := h.messages.SendMessage(c.Request.Context(), authInfo.SellerID, conversationID, reqArgs.Text, reqArgs.Attachments)
	if err != nil {
		return nil, apiErrorFor(err)
	}
	return msg, nil
}

type ConversationArgs struct {
	ConversationID string `json:"conversation_id"`
}

func (h *JsonApiHandler) markConversationRead(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, apiErr := h.caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs ConversationArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	conversationID, apiErr := parseID(reqArgs.ConversationID, "conversation id")
	if apiErr != nil {
		return nil, apiErr
	}
	n, err := h.messages.MarkRead(c.Request.Context(), authInfo.SellerID, conversationID)
	if err != nil {
		return nil, apiErrorFor(err)
	}
	return n, nil
}

// --- Promotions ---

func (h *JsonApiHandler) createPromotion(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, apiErr := h.caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var in services.PromotionInput
	if apiErr := h.parseRequiredSingleArgFromArray(args, &in); apiErr != nil {
		return nil, apiErr
	}
	promo, err := h.promotions.Create(c.Request.Context(), authInfo.SellerID, in)
	if err != nil {
		return nil, apiErrorFor(err)
	}
	return promo, nil
}

type UpdatePromotionArgs struct {
	ID string `json:"id"`
	services.PromotionInput
}

func (h *JsonApiHandler) updatePromotion(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, apiErr := h.caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs UpdatePromotionArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	promotionID, apiErr := parseID(reqArgs.ID, "promotion id")
	if apiErr != nil {
		return nil, apiErr
	}
	promo, err := h.promotions.Update(c.Request.Context(), authInfo.SellerID, promotionID, reqArgs.PromotionInput)
	if err != nil {
		return nil, apiErrorFor(err)
	}
	return promo, nil
}

type IDArgs struct {
	ID string `json:"id"`
}

func (h *JsonApiHandler) deletePromotion(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, apiErr := h.caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs IDArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	promotionID, apiErr := parseID(reqArgs.ID, "promotion id")
	if apiErr != nil {
		return nil, apiErr
	}
	if err := h.promotions.Delete(c.Request.Context(), authInfo.SellerID, promotionID); err != nil {
		return nil, apiErrorFor(err)
	}
	return true, nil
}

// --- Orders and reviews ---

type UpdateOrderStatusArgs struct {
	OrderID string             `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
}

func (h *JsonApiHandler) updateOrderStatus(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, apiErr := h.caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs UpdateOrderStatusArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	orderID, apiErr := parseID(reqArgs.OrderID, "order id")
	if apiErr != nil {
		return nil, apiErr
	}
	order, err := h.orders.UpdateStatus(c.Request.Context(), authInfo.SellerID, orderID, reqArgs.Status)
	if err != nil {
		return nil, apiErrorFor(err)
	}
	return order, nil
}

type ReviewArgs struct {
	ReviewID string `json:"review_id"`
}

func (h *JsonApiHandler) voteReviewHelpful(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, apiErr := h.caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs ReviewArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	reviewID, apiErr := parseID(reqArgs.ReviewID, "review id")
	if apiErr != nil {
		return nil, apiErr
	}
	votes, err := h.reviews.VoteHelpful(c.Request.Context(), authInfo.SellerID, reviewID)
	if err != nil {
		return nil, apiErrorFor(err)
	}
	return votes, nil
}

// --- Dashboard ---

type SalesReportArgs struct {
	Period   string `json:"period"`
	SellerID string `json:"seller_id,omitempty"`
}

type SalesReportResult struct {
	TaskID string `json:"task_id"`
}

// requestSalesReport queues the workbook export; the caller polls
// GET /v1/dashboard/reports/:task_id for the download URL.
func (h *JsonApiHandler) requestSalesReport(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	authInfo, apiErr := h.caller(c)
	if apiErr != nil {
		return nil, apiErr
	}
	var reqArgs SalesReportArgs
	if apiErr := h.parseRequiredSingleArgFromArray(args, &reqArgs); apiErr != nil {
		return nil, apiErr
	}
	period, err := analytics.ParsePeriod(reqArgs.Period)
	if err != nil {
		return nil, NewApiError(err.Error())
	}
	target, err := targetSeller(authInfo.SellerID, authInfo.IsStaff, reqArgs.SellerID)
	if err != nil {
		return nil, apiErrorFor(err)
	}
	task, err := tasks.NewReportExportTask(target, period)
	if err != nil {
		return nil, apiErrorFor(err)
	}
	info, err := h.taskClient.EnqueueContext(c.Request.Context(), task)
	if err != nil {
		logger.Log.Error("report_enqueue_failed", zap.String("seller_id", target.String()), zap.Error(err))
		return nil, NewApiError("Failed to queue report")
	}
	return SalesReportResult{TaskID: info.ID}, nil
}

// targetSeller resolves whose figures a dashboard call reads. Staff may name
// any seller; sellers only themselves.
func targetSeller(caller utils.SixID, isStaff bool, requested string) (utils.SixID, error) {
	if requested == "" {
		return caller, nil
	}
	id, err := utils.ParseSixID(requested)
	if err != nil {
		return utils.SixID{}, fmt.Errorf("%w: invalid seller id", services.ErrInvalidInput)
	}
	if id != caller && !isStaff {
		return utils.SixID{}, services.ErrForbidden
	}
	return id, nil
}
