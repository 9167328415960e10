package controllers

import (
	"net/http"

	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/models"
	"github.com/Ndunguuu01/kodipay/internal/services"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

type ComplaintController struct {
	complaintService services.ComplaintService
}

func NewComplaintController(s services.ComplaintService) *ComplaintController {
	return &ComplaintController{complaintService: s}
}

// GET /api/complaints
func (c *ComplaintController) ListComplaintsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	list, err := c.complaintService.List(r.Context(), actor)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// GET /api/complaints/tenant/{tenantId}
func (c *ComplaintController) ListTenantComplaintsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	tenantID, ok := pathUUID(w, r, "tenantId")
	if !ok {
		return
	}
	list, err := c.complaintService.ListForTenant(r.Context(), actor, tenantID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// POST /api/complaints
func (c *ComplaintController) CreateComplaintHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req dtos.CreateComplaintRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	complaint, err := c.complaintService.Create(r.Context(), actor, req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, complaint)
}

// PUT /api/complaints/{id}
func (c *ComplaintController) UpdateComplaintHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.UpdateComplaintStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	complaint, err := c.complaintService.UpdateStatus(r.Context(), actor, id, models.ComplaintStatus(req.Status))
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, complaint)
}

// DELETE /api/complaints/{id}
func (c *ComplaintController) DeleteComplaintHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := c.complaintService.Delete(r.Context(), actor, id); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.MessageResponse{Message: "Complaint deleted"})
}
