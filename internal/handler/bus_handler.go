package handler

import (
	"errors"
	"net/http"
	"strconv"

	"bus_ticket/internal/model"
	"bus_ticket/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BusHandler handles buses and their route lists
type BusHandler struct {
	service service.BusService
	log     *zap.Logger
}

func NewBusHandler(s service.BusService, log *zap.Logger) *BusHandler {
	return &BusHandler{service: s, log: log}
}

func (h *BusHandler) CreateBus(c *gin.Context) {
	var req model.CreateBusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request: " + err.Error()})
		return
	}

	bus, err := h.service.CreateBus(c.Request.Context(), req)
	if err != nil {
		h.log.Error("create bus failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create bus"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true, "insertedId": bus.ID})
}

func (h *BusHandler) ListBuses(c *gin.Context) {
	buses, err := h.service.ListBuses(c.Request.Context())
	if err != nil {
		h.log.Error("list buses failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to retrieve buses"})
		return
	}
	c.JSON(http.StatusOK, buses)
}

func (h *BusHandler) GetBus(c *gin.Context) {
	bus, err := h.service.GetBus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.busError(c, err, "get bus failed")
		return
	}
	c.JSON(http.StatusOK, bus)
}

func (h *BusHandler) DeleteBus(c *gin.Context) {
	n, err := h.service.DeleteBus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.Error("delete bus failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete bus"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true, "deletedCount": n})
}

func (h *BusHandler) ListRoutes(c *gin.Context) {
	routes, err := h.service.ListRoutes(c.Request.Context(), c.Param("busId"))
	if err != nil {
		h.busError(c, err, "list routes failed")
		return
	}
	c.JSON(http.StatusOK, routes)
}

func (h *BusHandler) AddRoute(c *gin.Context) {
	var req model.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request: " + err.Error()})
		return
	}

	route, err := h.service.AddRoute(c.Request.Context(), c.Param("busId"), req)
	if err != nil {
		h.busError(c, err, "add route failed")
		return
	}
	c.JSON(http.StatusOK, route)
}

// parseRouteIndex reads :routeIndex; non-integers and negatives are rejected
func parseRouteIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("routeIndex"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid route index"})
		return 0, false
	}
	return index, true
}

func (h *BusHandler) EditRoute(c *gin.Context) {
	index, ok := parseRouteIndex(c)
	if !ok {
		return
	}

	var req model.EditRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request: " + err.Error()})
		return
	}

	updated, err := h.service.EditRoute(c.Request.Context(), c.Param("busId"), index, req)
	if err != nil {
		h.log.Error("edit route failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to update route"})
		return
	}
	if !updated {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Route not updated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Route updated successfully"})
}

func (h *BusHandler) DeleteRoute(c *gin.Context) {
	index, ok := parseRouteIndex(c)
	if !ok {
		return
	}

	n, err := h.service.DeleteRoute(c.Request.Context(), c.Param("busId"), index, c.Query("routeId"))
	if err != nil {
		h.busError(c, err, "delete route failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Route deleted successfully", "deletedCount": n})
}

func (h *BusHandler) busError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, service.ErrBusNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Bus not found"})
	case errors.Is(err, service.ErrRouteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Route not found"})
	case errors.Is(err, service.ErrRouteConflict):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
	default:
		h.log.Error(logMsg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}

// RegisterBusRoutes registers /buses and /routes. When routeEditPublic is set
// PUT /routes/:busId/:routeIndex needs no token.
func (h *BusHandler) RegisterBusRoutes(r gin.IRouter, jwtAuthMW, adminMW gin.HandlerFunc, routeEditPublic bool) {
	buses := r.Group("/buses")
	{
		buses.POST("", jwtAuthMW, adminMW, h.CreateBus)
		buses.GET("", h.ListBuses)
		buses.GET("/:id", h.GetBus)
		buses.DELETE("/:id", jwtAuthMW, adminMW, h.DeleteBus)
	}

	routes := r.Group("/routes")
	{
		routes.GET("/:busId", h.ListRoutes)
		routes.POST("/:busId", jwtAuthMW, adminMW, h.AddRoute)
		if routeEditPublic {
			routes.PUT("/:busId/:routeIndex", h.EditRoute)
		} else {
			routes.PUT("/:busId/:routeIndex", jwtAuthMW, adminMW, h.EditRoute)
		}
		routes.DELETE("/:busId/:routeIndex", jwtAuthMW, adminMW, h.DeleteRoute)
	}
}
