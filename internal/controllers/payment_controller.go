package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/Ndunguuu01/kodipay/internal/constants"
	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/mpesa"
	"github.com/Ndunguuu01/kodipay/internal/services"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

type PaymentController struct {
	ledger  services.LedgerService
	gateway services.GatewayService
}

func NewPaymentController(ledger services.LedgerService, gateway services.GatewayService) *PaymentController {
	return &PaymentController{ledger: ledger, gateway: gateway}
}

// POST /api/payments
func (c *PaymentController) CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req dtos.CreatePaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	respondRecorded(w, r, c.ledger, actor, req.BillID, req.BillPaymentRequest)
}

// GET /api/payments
func (c *PaymentController) ListPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	payments, err := c.ledger.ListPayments(r.Context(), actor)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, payments)
}

// GET /api/payments/stats
func (c *PaymentController) PaymentStatsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	stats, err := c.ledger.ComputeStats(r.Context(), actor)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, stats)
}

// GET /api/payments/{id}
func (c *PaymentController) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	payment, err := c.ledger.GetPayment(r.Context(), actor, id)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, payment)
}

// PUT /api/payments/{id}/status
func (c *PaymentController) UpdatePaymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	logger := utils.Logger.WithField("handler", "UpdatePaymentStatusHandler")
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.UpdatePaymentStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	payment, err := c.ledger.UpdatePaymentStatus(r.Context(), actor, id, models.PaymentStatus(req.Status))
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	logger.WithField("paymentID", id).WithField("status", payment.Status).Info("payment status updated")
	utils.RespondWithJSON(w, http.StatusOK, payment)
}

// POST /api/payments/mpesa/stkpush
//
// The gateway's own response is relayed as-is so clients can show its
// CustomerMessage.
func (c *PaymentController) STKPushHandler(w http.ResponseWriter, r *http.Request) {
	logger := utils.Logger.WithField("handler", "STKPushHandler")
	var req dtos.STKPushRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	resp, err := c.gateway.InitiatePayment(r.Context(), req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	logger.WithField("checkoutRequestID", resp.CheckoutRequestID).Info("stk push accepted")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if len(resp.Raw) > 0 {
		_, _ = w.Write(resp.Raw)
		return
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// POST /api/payments/mpesa/callback
//
// Answers 200 with the ack the gateway service chose. A payload that does not
// decode is logged and accepted since a redelivery would not decode either.
func (c *PaymentController) MpesaCallbackHandler(w http.ResponseWriter, r *http.Request) {
	logger := utils.Logger.WithField("handler", "MpesaCallbackHandler")

	var payload mpesa.CallbackPayload
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.WithError(err).Warn("undecodable mpesa callback")
		utils.RespondWithJSON(w, http.StatusOK, mpesa.CallbackAck{
			ResultCode: constants.MpesaResultSuccess,
			ResultDesc: constants.MpesaAcceptedResultMsg,
		})
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, c.gateway.HandleCallback(r.Context(), payload))
}
