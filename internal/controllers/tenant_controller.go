package controllers

import (
	"net/http"

	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/services"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

type TenantController struct {
	tenantService services.TenantService
}

func NewTenantController(s services.TenantService) *TenantController {
	return &TenantController{tenantService: s}
}

// POST /api/tenants
func (c *TenantController) CreateTenantHandler(w http.ResponseWriter, r *http.Request) {
	logger := utils.Logger.WithField("handler", "CreateTenantHandler")
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req dtos.CreateTenantRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	t, err := c.tenantService.CreateTenant(r.Context(), actor, req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	logger.WithField("tenantID", t.ID).WithField("propertyID", t.PropertyID).Info("tenant created")
	utils.RespondWithJSON(w, http.StatusCreated, t)
}

// GET /api/tenants
func (c *TenantController) ListTenantsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	list, err := c.tenantService.ListTenants(r.Context(), actor)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// GET /api/tenants/{id}
func (c *TenantController) GetTenantHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	t, err := c.tenantService.GetTenant(r.Context(), actor, id)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, t)
}

// PUT /api/tenants/{id}
func (c *TenantController) UpdateTenantHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.UpdateTenantRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	t, err := c.tenantService.UpdateTenant(r.Context(), actor, id, req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, t)
}

// DELETE /api/tenants/{id}
func (c *TenantController) DeleteTenantHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := c.tenantService.DeleteTenant(r.Context(), actor, id); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.MessageResponse{Message: "Tenant deleted"})
}

// DELETE /api/tenants/all
func (c *TenantController) DeleteAllTenantsHandler(w http.ResponseWriter, r *http.Request) {
	logger := utils.Logger.WithField("handler", "DeleteAllTenantsHandler")
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	n, err := c.tenantService.DeleteAllTenants(r.Context(), actor)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	logger.WithField("landlordID", actor.UserID).WithField("deleted", n).Info("all tenants deleted")
	utils.RespondWithJSON(w, http.StatusOK, dtos.DeleteAllTenantsResponse{Deleted: n})
}

// GET /api/leases/tenant/{tenantId}
func (c *TenantController) ListLeasesHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	tenantID, ok := pathUUID(w, r, "tenantId")
	if !ok {
		return
	}
	leases, err := c.tenantService.ListLeases(r.Context(), actor, tenantID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, leases)
}
