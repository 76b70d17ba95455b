package zones

import (
	"errors"

	"github.com/iayvob/palboti-backend/internal/httpx"
	"github.com/iayvob/palboti-backend/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ZoneItem is a zone with its current slot usage
type ZoneItem struct {
	model.Zone
	Used int `json:"used"`
}

// AssignSlotRequest represents assign product to slot request
type AssignSlotRequest struct {
	ZoneID    string `json:"zoneId" binding:"required"`
	ProductID string `json:"productId" binding:"required"`
}

// ClearSlotRequest represents clear slot request
type ClearSlotRequest struct {
	SlotID int64 `json:"slotId" binding:"required"`
}

// Handler handles zones API
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new zones handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// List handles GET /zones, returning every zone with its occupancy
func (h *Handler) List(c *gin.Context) {
	var zones []model.Zone
	if err := h.db.Order("id ASC").Find(&zones).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query zones", err))
		return
	}

	items := make([]ZoneItem, 0, len(zones))
	for _, zone := range zones {
		var used int64
		if err := h.db.Model(&model.Slot{}).
			Where("zone_id = ? AND product_id IS NOT NULL", zone.ID).
			Count(&used).Error; err != nil {
			httpx.FailErr(c, httpx.ErrDatabaseError("failed to count slots", err))
			return
		}
		items = append(items, ZoneItem{Zone: zone, Used: int(used)})
	}

	httpx.OK(c, items)
}

// Get handles GET /zones/:id with the zone's slots
func (h *Handler) Get(c *gin.Context) {
	zoneID := c.Param("id")

	var zone model.Zone
	if err := h.db.First(&zone, "id = ?", zoneID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("zone not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query zone", err))
		return
	}

	var slots []model.Slot
	if err := h.db.Where("zone_id = ?", zoneID).
		Order("position ASC").
		Find(&slots).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query slots", err))
		return
	}

	httpx.OK(c, gin.H{
		"zone":  zone,
		"slots": slots,
	})
}

// AssignSlot handles POST /zones/slots/assign, placing a product in the
// first free slot of the zone
func (h *Handler) AssignSlot(c *gin.Context) {
	var req AssignSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	var product model.Product
	if err := h.db.First(&product, "id = ?", req.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("product not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query product", err))
		return
	}

	var slot model.Slot
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("zone_id = ? AND product_id IS NULL", req.ZoneID).
			Order("position ASC").
			First(&slot).Error; err != nil {
			return err
		}

		if err := tx.Model(&slot).Update("product_id", req.ProductID).Error; err != nil {
			return err
		}

		// Keep the product's coarse location in sync with its slot
		return tx.Model(&product).Update("location", req.ZoneID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrStateConflict("zone has no free slots"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to assign slot", err))
		return
	}

	slot.ProductID = &req.ProductID
	httpx.OK(c, &slot)
}

// ClearSlot handles POST /zones/slots/clear
func (h *Handler) ClearSlot(c *gin.Context) {
	var req ClearSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	var slot model.Slot
	if err := h.db.First(&slot, req.SlotID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("slot not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query slot", err))
		return
	}

	if err := h.db.Model(&slot).Update("product_id", nil).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to clear slot", err))
		return
	}

	slot.ProductID = nil
	httpx.OK(c, &slot)
}
