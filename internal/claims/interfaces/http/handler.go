package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/claimscortex/internal/claims/application"
	"github.com/wyfcoding/claimscortex/internal/claims/domain"
	"github.com/wyfcoding/claimscortex/pkg/logger"
	"github.com/wyfcoding/claimscortex/pkg/response"
)

// ClaimHandler HTTP 处理器
type ClaimHandler struct {
	claimService *application.ClaimService
	serviceName  string
	version      string
}

// NewClaimHandler 创建 HTTP 处理器
func NewClaimHandler(claimService *application.ClaimService, serviceName, version string) *ClaimHandler {
	return &ClaimHandler{
		claimService: claimService,
		serviceName:  serviceName,
		version:      version,
	}
}

// RegisterRoutes 注册路由
func (h *ClaimHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.Banner)
	router.GET("/health", h.Health)

	api := router.Group("/api")
	{
		api.POST("/claims/analyze", h.AnalyzeClaim)
		api.GET("/claims/:id", h.GetClaim)
		api.GET("/dashboard/stats", h.DashboardStats)
	}
}

// Banner 服务标识
func (h *ClaimHandler) Banner(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": h.serviceName,
		"version": h.version,
		"status":  "operational",
	})
}

// Health 健康检查
func (h *ClaimHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// AnalyzeClaim 受理理赔分析请求并驱动完整管线。
// 协作方不可用导致的升级裁决以 502 返回，响应体携带已持久化的裁决
func (h *ClaimHandler) AnalyzeClaim(c *gin.Context) {
	var req application.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	resp, err := h.claimService.AnalyzeClaim(ctx, req)
	if err != nil {
		if resp != nil && errors.Is(err, domain.ErrTransientCollaborator) {
			c.JSON(http.StatusBadGateway, resp)
			return
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetClaim 查询理赔详情
func (h *ClaimHandler) GetClaim(c *gin.Context) {
	claimID := c.Param("id")
	if claimID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "claim id is required"})
		return
	}

	detail, err := h.claimService.GetClaim(c.Request.Context(), claimID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, detail)
}

// DashboardStats 仪表盘统计
func (h *ClaimHandler) DashboardStats(c *gin.Context) {
	stats, err := h.claimService.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, stats)
}

// writeError 错误分类到 HTTP 状态码
func (h *ClaimHandler) writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	switch {
	case domain.IsMalformedInput(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrClaimNotFound), errors.Is(err, domain.ErrPolicyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrAlreadyDecided):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrTransientCollaborator):
		logger.Error(ctx, "Collaborator unavailable", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		logger.Error(ctx, "Request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
