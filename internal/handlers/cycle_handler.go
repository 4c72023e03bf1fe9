package handlers

import (
	"net/http"
	"strconv"

	"github.com/dinehub/leaderboard-backend/internal/apperrors"
	"github.com/dinehub/leaderboard-backend/internal/models"
	"github.com/dinehub/leaderboard-backend/internal/services"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CycleHandler handles cycle-related HTTP requests
type CycleHandler struct {
	cycleService services.CycleService
	sweepService services.SweepService
}

// NewCycleHandler creates a new CycleHandler
func NewCycleHandler(cycleService services.CycleService, sweepService services.SweepService) *CycleHandler {
	return &CycleHandler{
		cycleService: cycleService,
		sweepService: sweepService,
	}
}

// respondError maps the engine error taxonomy onto HTTP status codes
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		status = http.StatusBadRequest
	case apperrors.KindNotFound:
		status = http.StatusNotFound
	case apperrors.KindConflict:
		status = http.StatusConflict
	case apperrors.KindIllegalTransition:
		status = http.StatusUnprocessableEntity
	case apperrors.KindDependency:
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseObjectID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return primitive.NilObjectID, false
	}
	return id, true
}

func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, limit
}

// CreateCycle handles POST /cycles
func (h *CycleHandler) CreateCycle(c *gin.Context) {
	var request models.CreateCycleRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cycle, err := h.cycleService.CreateCycle(c.Request.Context(), &request)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cycle)
}

// UpdateCycle handles PUT /cycles/:id
func (h *CycleHandler) UpdateCycle(c *gin.Context) {
	id, ok := parseObjectID(c)
	if !ok {
		return
	}
	var request models.UpdateCycleRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cycle, err := h.cycleService.UpdateCycle(c.Request.Context(), id, &request)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cycle)
}

// CancelCycle handles POST /cycles/:id/cancel
func (h *CycleHandler) CancelCycle(c *gin.Context) {
	id, ok := parseObjectID(c)
	if !ok {
		return
	}
	cycle, err := h.cycleService.CancelCycle(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cycle)
}

// ForceCompleteCycle handles POST /cycles/:id/complete
func (h *CycleHandler) ForceCompleteCycle(c *gin.Context) {
	id, ok := parseObjectID(c)
	if !ok {
		return
	}
	result, err := h.cycleService.ForceCompleteCycle(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeleteCycle handles DELETE /cycles/:id
func (h *CycleHandler) DeleteCycle(c *gin.Context) {
	id, ok := parseObjectID(c)
	if !ok {
		return
	}
	if err := h.cycleService.DeleteCycle(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cycle deleted"})
}

// TriggerSweep handles POST /cycles/sweep
func (h *CycleHandler) TriggerSweep(c *gin.Context) {
	result, err := h.sweepService.Run(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetCycleByID handles GET /cycles/:id
func (h *CycleHandler) GetCycleByID(c *gin.Context) {
	id, ok := parseObjectID(c)
	if !ok {
		return
	}
	cycle, err := h.cycleService.GetCycleByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cycle)
}

// GetCycles handles GET /cycles
func (h *CycleHandler) GetCycles(c *gin.Context) {
	page, limit := parsePagination(c)
	status := models.CycleStatus(c.Query("status"))
	cycles, err := h.cycleService.GetCycles(c.Request.Context(), status, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cycles)
}

// GetParticipants handles GET /cycles/:id/participants
func (h *CycleHandler) GetParticipants(c *gin.Context) {
	id, ok := parseObjectID(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)
	standings, err := h.cycleService.GetParticipants(c.Request.Context(), id, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, standings)
}

// GetWinners handles GET /cycles/:id/winners
func (h *CycleHandler) GetWinners(c *gin.Context) {
	id, ok := parseObjectID(c)
	if !ok {
		return
	}
	winners, err := h.cycleService.GetWinners(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, winners)
}
