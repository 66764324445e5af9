package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	bookingsvc "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/bookings/service"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/ingestion"
	paymentsvc "github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/payments/service"
	apperrors "github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/errors"
	httputil "github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/http"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/logger"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// BookingHandler is the inbound surface for booking creation, evidence
// submission and admin reconciliation actions. State-mutating responses carry
// the updated snapshot plus the notified flag from the lifecycle coordinator.
type BookingHandler struct {
	bookings    bookingsvc.BookingService
	payments    paymentsvc.PaymentService
	lifecycle   bookingsvc.LifecycleCoordinator
	screenshots *ingestion.ScreenshotService
	log         *logger.Logger
}

func NewBookingHandler(
	bookings bookingsvc.BookingService,
	payments paymentsvc.PaymentService,
	lifecycle bookingsvc.LifecycleCoordinator,
	screenshots *ingestion.ScreenshotService,
	log *logger.Logger,
) *BookingHandler {
	return &BookingHandler{
		bookings:    bookings,
		payments:    payments,
		lifecycle:   lifecycle,
		screenshots: screenshots,
		log:         log,
	}
}

type adminActionRequest struct {
	AdminID string `json:"admin_id"`
	Reason  string `json:"reason,omitempty"`
}

type linkPaymentRequest struct {
	AdminID   string `json:"admin_id"`
	BookingID string `json:"booking_id"`
}

type screenshotRequest struct {
	ImageRef string `json:"image_ref"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var booking model.Booking
	if err := json.NewDecoder(r.Body).Decode(&booking); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	if err := h.bookings.Create(r.Context(), &booking); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, booking)
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.bookings.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, booking)
}

func (h *BookingHandler) GetByRef(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.bookings.GetByRef(r.Context(), ps.ByName("ref"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, booking)
}

// SubmitScreenshot ingests customer-uploaded payment evidence for a booking.
func (h *BookingHandler) SubmitScreenshot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req screenshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	result, err := h.screenshots.Submit(r.Context(), ps.ByName("id"), req.ImageRef)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

// Confirm applies a manual admin confirmation. The booking's already-linked
// payment (if any) is finalized with it.
func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	req, ok := h.decodeAdminAction(w, r)
	if !ok {
		return
	}

	booking, err := h.bookings.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.lifecycle.Confirm(r.Context(), id, booking.PaymentID, model.VerifyManualAdmin, req.AdminID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	req, ok := h.decodeAdminAction(w, r)
	if !ok {
		return
	}

	result, err := h.lifecycle.Reject(r.Context(), ps.ByName("id"), req.AdminID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

// LinkPayment attaches an unmatched payment to a booking and confirms it, the
// manual resolution path for evidence the matcher could not place.
func (h *BookingHandler) LinkPayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	paymentID := ps.ByName("id")

	var req linkPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}
	if req.AdminID == "" || req.BookingID == "" {
		httputil.WriteError(w, apperrors.InvalidInput("admin_id and booking_id are required"))
		return
	}

	payment, err := h.payments.GetByID(r.Context(), paymentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if payment.Status == model.PaymentVerified || payment.Status == model.PaymentRejected {
		httputil.WriteError(w, apperrors.InvalidState(
			fmt.Sprintf("Payment in status %q cannot be linked", payment.Status)))
		return
	}

	result, err := h.lifecycle.Confirm(r.Context(), req.BookingID, paymentID, model.VerifyManualAdmin, req.AdminID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

// PendingVerifications lists Waiting bookings for the admin dashboard.
func (h *BookingHandler) PendingVerifications(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	bookings, total, err := h.bookings.PendingVerifications(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, bookings, total, limit, offset)
}

// UnmatchedPayments lists payments awaiting manual linking.
func (h *BookingHandler) UnmatchedPayments(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	payments, total, err := h.payments.ListUnmatched(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, payments, total, limit, offset)
}

func (h *BookingHandler) decodeAdminAction(w http.ResponseWriter, r *http.Request) (*adminActionRequest, bool) {
	var req adminActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return nil, false
	}
	if req.AdminID == "" {
		httputil.WriteError(w, apperrors.InvalidInput("admin_id is required"))
		return nil, false
	}
	return &req, true
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.GET("/api/v1/bookings/ref/:ref", h.GetByRef)
	router.POST("/api/v1/bookings/id/:id/screenshot", h.SubmitScreenshot)

	router.GET("/api/v1/admin/verifications", h.PendingVerifications)
	router.GET("/api/v1/admin/payments/unmatched", h.UnmatchedPayments)
	router.POST("/api/v1/admin/bookings/id/:id/confirm", h.Confirm)
	router.POST("/api/v1/admin/bookings/id/:id/reject", h.Reject)
	router.POST("/api/v1/admin/payments/id/:id/link", h.LinkPayment)
}
