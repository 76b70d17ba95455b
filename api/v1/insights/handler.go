package insights

import (
	"errors"
	"strconv"

	"github.com/iayvob/palboti-backend/internal/httpx"
	"github.com/iayvob/palboti-backend/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ListRequest represents list insights request
type ListRequest struct {
	Page         int    `form:"page"`
	PageSize     int    `form:"pageSize"`
	Severity     string `form:"severity"`
	Acknowledged *bool  `form:"acknowledged"`
}

// Handler handles insights API
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new insights handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// List handles GET /insights, newest first
func (h *Handler) List(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid query parameters"))
		return
	}

	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 || req.PageSize > 200 {
		req.PageSize = 20
	}

	query := h.db.Model(&model.Insight{})
	if req.Severity != "" {
		query = query.Where("severity = ?", req.Severity)
	}
	if req.Acknowledged != nil {
		query = query.Where("acknowledged = ?", *req.Acknowledged)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count insights", err))
		return
	}

	var insights []model.Insight
	if err := query.Order("created_at DESC").
		Offset((req.Page - 1) * req.PageSize).
		Limit(req.PageSize).
		Find(&insights).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query insights", err))
		return
	}

	httpx.OKItems(c, insights, total, req.Page, req.PageSize)
}

// Get handles GET /insights/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid insight id"))
		return
	}

	var insight model.Insight
	if err := h.db.First(&insight, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("insight not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query insight", err))
		return
	}

	httpx.OK(c, &insight)
}

// Acknowledge handles POST /insights/:id/ack
func (h *Handler) Acknowledge(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid insight id"))
		return
	}

	result := h.db.Model(&model.Insight{}).Where("id = ?", id).
		Update("acknowledged", true)
	if result.Error != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to acknowledge insight", result.Error))
		return
	}
	if result.RowsAffected == 0 {
		httpx.FailErr(c, httpx.ErrNotFound("insight not found"))
		return
	}

	httpx.OK(c, gin.H{
		"acknowledged": id,
	})
}
