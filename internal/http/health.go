package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/PixStore/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const healthTimeout = 3 * time.Second

// StoreStatus is the body of GET /healthz.
type StoreStatus struct {
	OK             bool  `json:"ok"`
	PendingCharges int64 `json:"pending_charges"`
	AvailableItems int64 `json:"available_items"`
}

// HealthHandler reports whether the store can reach its database, along with
// the backlog the payment watcher is working through.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(conn *gorm.DB) *HealthHandler {
	return &HealthHandler{db: conn}
}

// Status counts uncredited open charges and available items. Any query
// failure means the database is unusable.
func (h *HealthHandler) Status(ctx context.Context) (StoreStatus, error) {
	if h.db == nil {
		return StoreStatus{}, gorm.ErrInvalidDB
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var status StoreStatus
	if errCount := h.db.WithContext(ctx).Model(&models.Charge{}).
		Where("credited = ? AND status IN ?", false, []models.ChargeStatus{models.ChargeCreated, models.ChargePending}).
		Count(&status.PendingCharges).Error; errCount != nil {
		return StoreStatus{}, errCount
	}
	if errCount := h.db.WithContext(ctx).Model(&models.Item{}).
		Where("status = ?", models.ItemStatusAvailable).
		Count(&status.AvailableItems).Error; errCount != nil {
		return StoreStatus{}, errCount
	}
	status.OK = true
	return status, nil
}

// Healthz answers 200 with the store status or 503 when the database fails.
func (h *HealthHandler) Healthz(c *gin.Context) {
	status, err := h.Status(c.Request.Context())
	if err != nil {
		log.WithError(err).Warn("healthz: store unavailable")
		c.JSON(http.StatusServiceUnavailable, StoreStatus{})
		return
	}
	c.JSON(http.StatusOK, status)
}
