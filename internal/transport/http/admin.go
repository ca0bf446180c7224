package httptransport

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"mailcode/backend/internal/auth"
	"mailcode/backend/internal/domain"
	"mailcode/backend/internal/service"
)

// AccessMetrics 访问码相关指标，可为 nil
type AccessMetrics interface {
	RecordAccessCodeCreated()
	RecordAccessValidation(ok bool)
}

// AdminHandler 管理员与访问码接口
type AdminHandler struct {
	codes   *service.AccessCodeService
	admin   *auth.AdminAuthenticator
	metrics AccessMetrics
	log     *zap.Logger
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(codes *service.AccessCodeService, admin *auth.AdminAuthenticator, metrics AccessMetrics, log *zap.Logger) *AdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{codes: codes, admin: admin, metrics: metrics, log: log}
}

type loginRequest struct {
	Password      string `json:"password"`
	AdminPassword string `json:"adminPassword"`
}

type createCodeRequest struct {
	Code       string `json:"code"`
	ExpiryDays int    `json:"expiryDays"`
}

type validateCodeRequest struct {
	Code string `json:"code"`
}

// Login POST /api/admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, MsgInvalidRequest)
		return
	}
	password := req.Password
	if password == "" {
		password = req.AdminPassword
	}

	token, expiresAt, err := h.admin.Login(password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrPasswordRequired):
		Error(c, http.StatusBadRequest, "Admin password required")
		return
	case errors.Is(err, auth.ErrInvalidPassword), errors.Is(err, auth.ErrAdminDisabled):
		h.log.Warn("admin login rejected", zap.String("ip", c.ClientIP()), zap.Error(err))
		Error(c, http.StatusForbidden, "Invalid admin password")
		return
	default:
		h.log.Error("admin login failed", zap.Error(err))
		Error(c, http.StatusInternalServerError, MsgInternalError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
}

// CreateCode POST /api/admin/codes
func (h *AdminHandler) CreateCode(c *gin.Context) {
	var req createCodeRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		Error(c, http.StatusBadRequest, MsgInvalidRequest)
		return
	}

	code, err := h.codes.Create(c.Request.Context(), service.CreateAccessCodeInput{
		Code:       req.Code,
		ExpiryDays: req.ExpiryDays,
	})
	if err != nil {
		h.accessCodeError(c, "create access code", err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordAccessCodeCreated()
	}
	c.JSON(http.StatusCreated, code)
}

// ListCodes GET /api/admin/codes
func (h *AdminHandler) ListCodes(c *gin.Context) {
	codes, err := h.codes.List(c.Request.Context())
	if err != nil {
		h.accessCodeError(c, "list access codes", err)
		return
	}
	if codes == nil {
		codes = []*domain.AccessCode{}
	}
	c.JSON(http.StatusOK, codes)
}

// DeleteCode DELETE /api/admin/codes/:id
func (h *AdminHandler) DeleteCode(c *gin.Context) {
	if err := h.codes.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, domain.ErrAccessCodeNotFound) {
			c.JSON(http.StatusNotFound, Result{Success: false, Message: "Code not found"})
			return
		}
		h.accessCodeError(c, "delete access code", err)
		return
	}
	c.JSON(http.StatusOK, Result{Success: true, Message: "Access code deleted"})
}

// ValidateCode POST /api/admin/validate-code
func (h *AdminHandler) ValidateCode(c *gin.Context) {
	var req validateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		c.JSON(http.StatusBadRequest, Result{Success: false, Message: "Code is required"})
		return
	}

	session, err := h.codes.Validate(c.Request.Context(), req.Code)
	if h.metrics != nil {
		h.metrics.RecordAccessValidation(err == nil)
	}
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAccessCodeNotFound):
		c.JSON(http.StatusNotFound, Result{Success: false, Message: "Code not found"})
		return
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, Result{Success: false, Message: "Code is required"})
		return
	default:
		h.log.Error("validate access code failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Result{Success: false, Message: MsgInternalError})
		return
	}

	c.JSON(http.StatusOK, Result{Success: true, Message: "Code is valid", Token: session.Token})
}

func (h *AdminHandler) accessCodeError(c *gin.Context, op string, err error) {
	status, msg := accessCodeStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(op+" failed", zap.Error(err))
	}
	Error(c, status, msg)
}
