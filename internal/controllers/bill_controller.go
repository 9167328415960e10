package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/services"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

type BillController struct {
	ledger services.LedgerService
}

func NewBillController(ledger services.LedgerService) *BillController {
	return &BillController{ledger: ledger}
}

// POST /api/bills
func (c *BillController) CreateBillHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req dtos.CreateBillRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	bill, err := c.ledger.CreateBill(r.Context(), actor, req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, bill)
}

// GET /api/bills?status=
func (c *BillController) ListBillsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var status *models.BillStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.BillStatus(raw)
		if !s.Valid() {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Unknown bill status", nil)
			return
		}
		status = &s
	}

	bills, err := c.ledger.ListBills(r.Context(), actor, status)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, bills)
}

// GET /api/bills/stats
func (c *BillController) BillStatsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	stats, err := c.ledger.BillStats(r.Context(), actor)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, stats)
}

// GET /api/bills/{id}
func (c *BillController) GetBillHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	bill, err := c.ledger.GetBill(r.Context(), actor, id)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, bill)
}

// PUT /api/bills/{id}
func (c *BillController) UpdateBillHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.UpdateBillRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	bill, err := c.ledger.UpdateBill(r.Context(), actor, id, req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, bill)
}

// DELETE /api/bills/{id}
func (c *BillController) DeleteBillHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := c.ledger.DeleteBill(r.Context(), actor, id); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.MessageResponse{Message: "Bill deleted"})
}

// POST /api/bills/{id}/payments
func (c *BillController) RecordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.BillPaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	respondRecorded(w, r, c.ledger, actor, id, req)
}

// respondRecorded answers 201 for a new payment and 200 for an idempotent replay.
func respondRecorded(
	w http.ResponseWriter,
	r *http.Request,
	ledger services.LedgerService,
	actor models.Actor,
	billID uuid.UUID,
	req dtos.BillPaymentRequest,
) {
	payment, replayed, err := ledger.RecordPayment(r.Context(), actor, billID, req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
		utils.Logger.WithField("handler", "RecordPayment").WithField("paymentID", payment.ID).Info("idempotent replay")
	}
	utils.RespondWithJSON(w, status, payment)
}
