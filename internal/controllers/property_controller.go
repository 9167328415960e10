package controllers

import (
	"net/http"

	"github.com/Ndunguuu01/kodipay/internal/dtos"
	"github.com/Ndunguuu01/kodipay/internal/services"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

type PropertyController struct {
	propertyService services.PropertyService
}

func NewPropertyController(s services.PropertyService) *PropertyController {
	return &PropertyController{propertyService: s}
}

// POST /api/properties
func (c *PropertyController) CreatePropertyHandler(w http.ResponseWriter, r *http.Request) {
	logger := utils.Logger.WithField("handler", "CreatePropertyHandler")
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req dtos.CreatePropertyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	p, err := c.propertyService.CreateProperty(r.Context(), actor, req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	logger.WithField("propertyID", p.ID).Info("property created")
	utils.RespondWithJSON(w, http.StatusCreated, p)
}

// GET /api/properties
func (c *PropertyController) ListPropertiesHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	list, err := c.propertyService.ListProperties(r.Context(), actor)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

// GET /api/properties/{id}
func (c *PropertyController) GetPropertyHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	p, err := c.propertyService.GetProperty(r.Context(), actor, id)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}

// PUT /api/properties/{id}
func (c *PropertyController) UpdatePropertyHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.UpdatePropertyRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	p, err := c.propertyService.UpdateProperty(r.Context(), actor, id, req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}

// DELETE /api/properties/{id}
func (c *PropertyController) DeletePropertyHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := c.propertyService.DeleteProperty(r.Context(), actor, id); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.MessageResponse{Message: "Property deleted"})
}

// POST /api/properties/{id}/floors
func (c *PropertyController) AddFloorHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.AddFloorRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	f, err := c.propertyService.AddFloor(r.Context(), actor, id, req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, f)
}

// POST /api/properties/{id}/floors/{floorId}/rooms
func (c *PropertyController) AddRoomHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	floorID, ok := pathUUID(w, r, "floorId")
	if !ok {
		return
	}
	var req dtos.AddRoomRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	room, err := c.propertyService.AddRoom(r.Context(), actor, id, floorID, req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, room)
}

// PUT /api/properties/{id}/rooms/{roomId}
func (c *PropertyController) UpdateRoomHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, r, "roomId")
	if !ok {
		return
	}
	var req dtos.UpdateRoomRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	room, err := c.propertyService.UpdateRoom(r.Context(), actor, id, roomID, req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, room)
}

// DELETE /api/properties/{id}/rooms/{roomId}
func (c *PropertyController) DeleteRoomHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, r, "roomId")
	if !ok {
		return
	}
	if err := c.propertyService.DeleteRoom(r.Context(), actor, id, roomID); err != nil {
		utils.HandleAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.MessageResponse{Message: "Room deleted"})
}

// PUT /api/properties/{id}/rooms/{roomId}/remove-tenant
func (c *PropertyController) RemoveTenantHandler(w http.ResponseWriter, r *http.Request) {
	logger := utils.Logger.WithField("handler", "RemoveTenantHandler")
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, r, "roomId")
	if !ok {
		return
	}
	p, err := c.propertyService.RemoveTenantFromRoom(r.Context(), actor, id, roomID)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	logger.WithField("propertyID", id).WithField("roomID", roomID).Info("tenant removed from room")
	utils.RespondWithJSON(w, http.StatusOK, p)
}

// PUT /api/properties/{id}/assign-tenant
func (c *PropertyController) AssignTenantHandler(w http.ResponseWriter, r *http.Request) {
	logger := utils.Logger.WithField("handler", "AssignTenantHandler")
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req dtos.AssignTenantRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	p, err := c.propertyService.AssignTenantToRoom(r.Context(), actor, id, req)
	if err != nil {
		utils.HandleAppError(w, err)
		return
	}
	logger.WithField("propertyID", id).WithField("tenantID", req.TenantID).Info("tenant assigned to room")
	utils.RespondWithJSON(w, http.StatusOK, p)
}
