package dashboard

import (
	"time"

	"github.com/iayvob/palboti-backend/internal/httpx"
	"github.com/iayvob/palboti-backend/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Stats is the aggregate the dashboard landing page renders
type Stats struct {
	Robots struct {
		Total    int64            `json:"total"`
		ByStatus map[string]int64 `json:"byStatus"`
	} `json:"robots"`
	Tasks struct {
		Pending        int64 `json:"pending"`
		InProgress     int64 `json:"inProgress"`
		CompletedToday int64 `json:"completedToday"`
	} `json:"tasks"`
	Products struct {
		Total  int64 `json:"total"`
		Stored int64 `json:"stored"`
	} `json:"products"`
	Insights struct {
		Unacknowledged int64 `json:"unacknowledged"`
	} `json:"insights"`
}

// Handler handles dashboard API
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new dashboard handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// Stats handles GET /dashboard/stats
func (h *Handler) Stats(c *gin.Context) {
	var stats Stats
	stats.Robots.ByStatus = make(map[string]int64)

	if err := h.db.Model(&model.Robot{}).Count(&stats.Robots.Total).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count robots", err))
		return
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	if err := h.db.Model(&model.Robot{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&counts).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count robots by status", err))
		return
	}
	for _, sc := range counts {
		stats.Robots.ByStatus[sc.Status] = sc.Count
	}

	if err := h.db.Model(&model.Task{}).
		Where("status = ?", model.TaskStatusPending).
		Count(&stats.Tasks.Pending).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count pending tasks", err))
		return
	}
	if err := h.db.Model(&model.Task{}).
		Where("status = ?", model.TaskStatusInProgress).
		Count(&stats.Tasks.InProgress).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count in-progress tasks", err))
		return
	}

	dayStart := time.Now().Truncate(24 * time.Hour)
	if err := h.db.Model(&model.Task{}).
		Where("status = ? AND completed_at >= ?", model.TaskStatusCompleted, dayStart).
		Count(&stats.Tasks.CompletedToday).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count completed tasks", err))
		return
	}

	if err := h.db.Model(&model.Product{}).Count(&stats.Products.Total).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count products", err))
		return
	}
	if err := h.db.Model(&model.Product{}).
		Where("status = ?", model.ProductStatusStored).
		Count(&stats.Products.Stored).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count stored products", err))
		return
	}

	if err := h.db.Model(&model.Insight{}).
		Where("acknowledged = ?", false).
		Count(&stats.Insights.Unacknowledged).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count insights", err))
		return
	}

	httpx.OK(c, &stats)
}
