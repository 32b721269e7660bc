package handlers

import (
	"log/slog"
	"net/http"

	"github.com/dentalmart/marketplace/internal/api/middleware"
	service "github.com/dentalmart/marketplace/internal/services"
	"github.com/dentalmart/marketplace/internal/utils/response"
)

type AdminHandler struct {
	adminService *service.AdminService
}

func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// DashboardStats godoc
//	@Summary		Admin dashboard aggregates
//	@Description	Total revenue, order counts by status, top selling products, low stock products, customer count and pending review count.
//	@Tags			Admin
//	@Produce		json
//	@Success		200	{object}	models.DashboardStats
//	@Failure		403	{object}	response.ErrorResponse	"Admin role required"
//	@Security		BearerAuth
//	@Router			/admin/dashboard [get]
func (h *AdminHandler) DashboardStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		stats, err := h.adminService.DashboardStats(r.Context())
		if err != nil {
			logger.Error("Failed to build dashboard stats", slog.Any("error", err))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, stats)
	}
}
