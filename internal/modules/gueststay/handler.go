package gueststay

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gueststay/internal/domain/stay"
	"gueststay/internal/pkg/dates"
	"gueststay/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	guests := rg.Group("/guests/:guestId")
	{
		guests.GET("/stays", h.ListStays)
		guests.POST("/stays/:roomId", h.CheckIn)

		period := guests.Group("/stays/:roomId/periods/:checkInDate")
		period.GET("", h.GetStay)
		period.DELETE("", h.CheckOut)
		period.POST("/charges", h.RecordCharge)
		period.POST("/payments", h.RecordPayment)
	}
}

// CheckIn opens today's account for the guest in the room.
func (h *Handler) CheckIn(c *gin.Context) {
	guestID, roomID := stay.NormalizeID(c.Param("guestId")), stay.NormalizeID(c.Param("roomId"))

	id, checkedInAt, err := h.service.CheckIn(c.Request.Context(), guestID, roomID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	location := fmt.Sprintf("/api/v1/guests/%s/stays/%s/periods/%s",
		url.PathEscape(guestID), url.PathEscape(roomID), dates.FormatUTCDay(checkedInAt))
	response.Created(c, location, CheckInResponse{ID: id, CheckedInAt: checkedInAt})
}

func (h *Handler) RecordCharge(c *gin.Context) {
	accountID, ok := accountIDFromPath(c)
	if !ok {
		return
	}

	var req RecordChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.ChargeID == "" {
		req.ChargeID = uuid.NewString()
	}

	if err := h.service.RecordCharge(c.Request.Context(), accountID, req.ChargeID, req.Amount); err != nil {
		h.writeError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) RecordPayment(c *gin.Context) {
	accountID, ok := accountIDFromPath(c)
	if !ok {
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.PaymentID == "" {
		req.PaymentID = uuid.NewString()
	}

	if err := h.service.RecordPayment(c.Request.Context(), accountID, req.PaymentID, req.Amount); err != nil {
		h.writeError(c, err)
		return
	}
	response.NoContent(c)
}

// CheckOut answers 204 when the guest left and 409 when the attempt was
// recorded as a failure.
func (h *Handler) CheckOut(c *gin.Context) {
	accountID, ok := accountIDFromPath(c)
	if !ok {
		return
	}

	out, err := h.service.CheckOut(c.Request.Context(), accountID, c.Query("groupCheckoutId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !out.CheckedOut {
		response.ErrorWithDetails(c, http.StatusConflict, "CHECKOUT_FAILED", checkoutFailureMessage(out.Reason),
			gin.H{"reason": out.Reason})
		return
	}
	response.NoContent(c)
}

func (h *Handler) GetStay(c *gin.Context) {
	accountID, ok := accountIDFromPath(c)
	if !ok {
		return
	}

	d, err := h.service.GetDetails(c.Request.Context(), accountID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toDetailsResponse(*d))
}

func (h *Handler) ListStays(c *gin.Context) {
	list, err := h.service.ListGuestStays(c.Request.Context(), c.Param("guestId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]DetailsResponse, 0, len(list))
	for _, d := range list {
		out = append(out, toDetailsResponse(d))
	}
	response.Success(c, http.StatusOK, gin.H{"stays": out})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var illegal *stay.IllegalStateError

	switch {
	case errors.As(err, &illegal):
		response.Error(c, http.StatusForbidden, "ILLEGAL_STATE", illegal.Message)
	case errors.Is(err, stay.ErrInvalidAmount):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Amount must be greater than zero")
	case errors.Is(err, ErrValidation), errors.Is(err, stay.ErrInvalidCommand):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrConcurrencyConflict):
		response.Error(c, http.StatusConflict, "CONCURRENCY_CONFLICT", "Account was modified concurrently, try again")
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Guest stay not found")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process request")
	}
}

func accountIDFromPath(c *gin.Context) (string, bool) {
	day, err := dates.ParseUTCDay(c.Param("checkInDate"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "checkInDate must be YYYY-MM-DD")
		return "", false
	}
	return stay.AccountID(c.Param("guestId"), c.Param("roomId"), day), true
}

func checkoutFailureMessage(reason stay.CheckoutFailureReason) string {
	switch reason {
	case stay.ReasonBalanceNotSettled:
		return "Balance is not settled"
	case stay.ReasonNotOpened:
		return "Guest stay is not open"
	default:
		return string(reason)
	}
}
