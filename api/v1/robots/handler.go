package robots

import (
	"errors"
	"log"

	"github.com/iayvob/palboti-backend/internal/cache"
	"github.com/iayvob/palboti-backend/internal/httpx"
	"github.com/iayvob/palboti-backend/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ListRequest represents list robots request
type ListRequest struct {
	Status string `form:"status"`
}

// HistoryRequest represents robot status history request
type HistoryRequest struct {
	Limit int `form:"limit"`
}

// Handler handles robots API
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new robots handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// List handles GET /robots
func (h *Handler) List(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid query parameters"))
		return
	}

	query := h.db.Model(&model.Robot{})
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	var robots []model.Robot
	if err := query.Order("id ASC").Find(&robots).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query robots", err))
		return
	}

	httpx.OK(c, robots)
}

// Get handles GET /robots/:id. The latest status is served from the Redis
// cache when present; the database is the fallback.
func (h *Handler) Get(c *gin.Context) {
	robotID := c.Param("id")
	if robotID == "" {
		httpx.FailErr(c, httpx.ErrParamMissing("robot id is required"))
		return
	}

	cached, err := cache.GetRobotStatus(c.Request.Context(), robotID)
	if err != nil {
		// Cache trouble is not fatal; fall through to the database
		log.Printf("[Robots] Cache read failed for %s: %v", robotID, err)
	}
	if cached != nil {
		httpx.OK(c, cached)
		return
	}

	var robot model.Robot
	if err := h.db.First(&robot, "id = ?", robotID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("robot not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query robot", err))
		return
	}

	httpx.OK(c, &robot)
}

// History handles GET /robots/:id/history, returning recent status audit
// rows newest first
func (h *Handler) History(c *gin.Context) {
	robotID := c.Param("id")
	if robotID == "" {
		httpx.FailErr(c, httpx.ErrParamMissing("robot id is required"))
		return
	}

	var req HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid query parameters"))
		return
	}
	if req.Limit <= 0 || req.Limit > 500 {
		req.Limit = 100
	}

	var audits []model.StatusAudit
	if err := h.db.Where("robot_id = ?", robotID).
		Order("created_at DESC").
		Limit(req.Limit).
		Find(&audits).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query status history", err))
		return
	}

	httpx.OK(c, audits)
}
