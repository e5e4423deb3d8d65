package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"notika/backend/internal/service"
)

// AdminHandler 管理端仪表盘与分类管理
type AdminHandler struct {
	dashboard  *service.DashboardService
	categories *service.CategoryService
	log        *zap.Logger
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(dashboard *service.DashboardService, categories *service.CategoryService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{dashboard: dashboard, categories: categories, log: log.Named("admin_handler")}
}

// Dashboard 仪表盘
func (h *AdminHandler) Dashboard(c *gin.Context) {
	data, err := h.dashboard.Get(c.Request.Context())
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, data)
}

// ListCategories 全部分类；?active=true 只返回启用的
func (h *AdminHandler) ListCategories(c *gin.Context) {
	categories, err := h.categories.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, categories)
}

// GetCategory 分类详情
func (h *AdminHandler) GetCategory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	category, err := h.categories.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, category)
}

// CreateCategory 新建分类
func (h *AdminHandler) CreateCategory(c *gin.Context) {
	var req service.CategoryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	category, err := h.categories.Create(c.Request.Context(), req)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Created(c, category)
}

// UpdateCategory 更新分类
func (h *AdminHandler) UpdateCategory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req service.CategoryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	category, err := h.categories.Update(c.Request.Context(), id, req)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, category)
}

// ToggleCategory 启用或停用分类
func (h *AdminHandler) ToggleCategory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	category, err := h.categories.ToggleStatus(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, category)
}

// DeleteCategory 删除分类
func (h *AdminHandler) DeleteCategory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.categories.Delete(c.Request.Context(), id); err != nil {
		handleError(c, h.log, err)
		return
	}
	Success(c, nil)
}
