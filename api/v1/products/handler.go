package products

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/iayvob/palboti-backend/internal/httpx"
	"github.com/iayvob/palboti-backend/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ListRequest represents list products request
type ListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
	Category string `form:"category"`
	Status   string `form:"status"`
	Search   string `form:"search"`
}

// CreateRequest represents create product request
type CreateRequest struct {
	Name     string  `json:"name" binding:"required"`
	Category string  `json:"category" binding:"required"`
	Location string  `json:"location"`
	Weight   float64 `json:"weight"`
	Tags     string  `json:"tags"`
}

// UpdateRequest represents update product request
type UpdateRequest struct {
	ID       string  `json:"id" binding:"required"`
	Status   *string `json:"status"`
	Location *string `json:"location"`
	Tags     *string `json:"tags"`
}

// Handler handles products API
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new products handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// List handles GET /products
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

	query := h.db.Model(&model.Product{})
	if req.Category != "" {
		query = query.Where("category = ?", req.Category)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Search != "" {
		like := "%" + req.Search + "%"
		query = query.Where("name LIKE ? OR id LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count products", err))
		return
	}

	var products []model.Product
	if err := query.Order("created_at DESC").
		Offset((req.Page - 1) * req.PageSize).
		Limit(req.PageSize).
		Find(&products).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query products", err))
		return
	}

	httpx.OKItems(c, products, total, req.Page, req.PageSize)
}

// Get handles GET /products/:id
func (h *Handler) Get(c *gin.Context) {
	productID := c.Param("id")

	var product model.Product
	if err := h.db.First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("product not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query product", err))
		return
	}

	httpx.OK(c, &product)
}

// CategoryItem is one slice of the category breakdown
type CategoryItem struct {
	Name       string `json:"name"`
	Count      int64  `json:"count"`
	Percentage int    `json:"percentage"`
}

type categoryCount struct {
	Category string
	Count    int64
}

// Categories handles GET /products/categories
func (h *Handler) Categories(c *gin.Context) {
	var rows []categoryCount
	if err := h.db.Model(&model.Product{}).
		Select("category, COUNT(*) AS count").
		Group("category").
		Scan(&rows).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count categories", err))
		return
	}

	httpx.OK(c, buildCategoryBreakdown(rows))
}

// buildCategoryBreakdown turns raw group counts into the dashboard's
// breakdown, largest category first
func buildCategoryBreakdown(rows []categoryCount) []CategoryItem {
	var total int64
	for _, row := range rows {
		total += row.Count
	}

	items := make([]CategoryItem, 0, len(rows))
	for _, row := range rows {
		pct := 0
		if total > 0 {
			pct = int(math.Round(float64(row.Count) / float64(total) * 100))
		}
		items = append(items, CategoryItem{
			Name:       row.Category,
			Count:      row.Count,
			Percentage: pct,
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Count > items[j].Count })
	return items
}

// Create handles POST /products/create
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	product := model.Product{
		ID:       fmt.Sprintf("P-%s", uuid.NewString()[:8]),
		Name:     req.Name,
		Category: req.Category,
		Status:   model.ProductStatusStored,
		Location: req.Location,
		Weight:   req.Weight,
		Tags:     req.Tags,
	}

	if err := h.db.Create(&product).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to create product", err))
		return
	}

	httpx.OK(c, &product)
}

// Update handles POST /products/update
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	var product model.Product
	if err := h.db.First(&product, "id = ?", req.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("product not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query product", err))
		return
	}

	updates := map[string]interface{}{}
	if req.Status != nil {
		if !validStatus(*req.Status) {
			httpx.FailErr(c, httpx.ErrParamInvalid("invalid product status"))
			return
		}
		updates["status"] = *req.Status
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.Tags != nil {
		updates["tags"] = *req.Tags
	}

	if len(updates) == 0 {
		httpx.OK(c, &product)
		return
	}

	if err := h.db.Model(&product).Updates(updates).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to update product", err))
		return
	}

	httpx.OK(c, &product)
}

func validStatus(status string) bool {
	switch status {
	case model.ProductStatusStored, model.ProductStatusProcessing,
		model.ProductStatusReadyToShip, model.ProductStatusShipped:
		return true
	}
	return false
}
