package tasks

import (
	"errors"
	"strconv"

	"github.com/iayvob/palboti-backend/internal/dispatch"
	"github.com/iayvob/palboti-backend/internal/httpx"
	"github.com/iayvob/palboti-backend/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ListRequest represents list tasks request
type ListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
	Status   string `form:"status"`
	Type     string `form:"type"`
	RobotID  string `form:"robotId"`
}

// Handler handles tasks API
type Handler struct {
	db         *gorm.DB
	dispatcher *dispatch.Dispatcher
}

// NewHandler creates a new tasks handler
func NewHandler(db *gorm.DB, dispatcher *dispatch.Dispatcher) *Handler {
	return &Handler{db: db, dispatcher: dispatcher}
}

// List handles GET /tasks
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

	query := h.db.Model(&model.Task{})
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Type != "" {
		query = query.Where("type = ?", req.Type)
	}
	if req.RobotID != "" {
		query = query.Where("robot_id = ?", req.RobotID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count tasks", err))
		return
	}

	var tasks []model.Task
	if err := query.Order("created_at DESC").
		Offset((req.Page - 1) * req.PageSize).
		Limit(req.PageSize).
		Find(&tasks).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query tasks", err))
		return
	}

	httpx.OKItems(c, tasks, total, req.Page, req.PageSize)
}

// Get handles GET /tasks/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid task id"))
		return
	}

	var task model.Task
	if err := h.db.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("task not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query task", err))
		return
	}

	httpx.OK(c, &task)
}

// Create handles POST /tasks/create. The dispatcher validates the request,
// persists the row and publishes it to the robots.
func (h *Handler) Create(c *gin.Context) {
	var req dispatch.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	task, err := h.dispatcher.Enqueue(req)
	if err != nil {
		if errors.Is(err, dispatch.ErrInvalidTask) {
			httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
			return
		}
		httpx.FailErr(c, httpx.ErrInternalError("failed to create task", err))
		return
	}

	httpx.OK(c, task)
}

// Cancel handles POST /tasks/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid task id"))
		return
	}

	if err := h.dispatcher.Cancel(id); err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to cancel task", err))
		return
	}

	httpx.OK(c, gin.H{
		"cancelled": id,
	})
}
