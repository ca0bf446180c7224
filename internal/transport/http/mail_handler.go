package httptransport

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xeonx/timeago"
	"go.uber.org/zap"

	"mailcode/backend/internal/domain"
	"mailcode/backend/internal/middleware"
	"mailcode/backend/internal/service"
)

const resetDescription = "Let's reset your password so you can get back to watching."

// emailRequest 三个邮件接口共用的请求体
type emailRequest struct {
	Email string `json:"email"`
}

// emailRequired 各接口缺少 email 时的提示
var emailRequired = map[domain.Flavor]string{
	domain.FlavorResetLink:  MsgEmailRequired,
	domain.FlavorHousehold:  MsgEmailRequired + ".",
	domain.FlavorSignInCode: MsgEmailRequired,
}

// MailHandler 邮件检索接口
type MailHandler struct {
	retrieval *service.RetrievalService
	log       *zap.Logger
	onBlock   func(endpoint string)
	now       func() time.Time
}

// NewMailHandler 创建邮件检索处理器；onBlock 在请求被限流时调用，可为 nil
func NewMailHandler(retrieval *service.RetrievalService, log *zap.Logger, onBlock func(endpoint string)) *MailHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &MailHandler{
		retrieval: retrieval,
		log:       log,
		onBlock:   onBlock,
		now:       time.Now,
	}
}

// RequestLink POST /api/email/request-link
func (h *MailHandler) RequestLink(c *gin.Context) {
	result, ok := h.retrieve(c, domain.FlavorResetLink)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"emailContent": gin.H{
			"greeting":    result.Greeting,
			"description": resetDescription,
			"resetLink":   result.Value,
		},
	})
}

// Household POST /api/latest-household-netflix-email
func (h *MailHandler) Household(c *gin.Context) {
	result, ok := h.retrieve(c, domain.FlavorHousehold)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"requesterEmail":   result.Recipient,
		"verificationLink": result.Value,
		"emailReceivedAt":  FormatReceivedAt(result.EmailReceivedAt),
		"emailReceivedAgo": timeago.English.FormatReference(result.EmailReceivedAt, h.now()),
	})
}

// RequestCode POST /api/netflix/request-code
func (h *MailHandler) RequestCode(c *gin.Context) {
	result, ok := h.retrieve(c, domain.FlavorSignInCode)
	if !ok {
		return
	}
	expiresAt := result.ExtractedAt.Add(h.retrieval.FreshnessWindow())
	c.JSON(http.StatusOK, gin.H{
		"message":   "Netflix code requested successfully",
		"code":      result.Value,
		"expiresAt": expiresAt.UnixMilli(),
		"emailDate": result.EmailReceivedAt.UTC().Format(time.RFC3339),
	})
}

// retrieve 解析请求并执行检索；失败时已写入响应
func (h *MailHandler) retrieve(c *gin.Context, flavor domain.Flavor) (*domain.ExtractionResult, bool) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		status, key, _ := mapError(flavor, domain.ErrInvalidInput)
		writeError(c, status, key, emailRequired[flavor])
		return nil, false
	}

	result, err := h.retrieval.Retrieve(c.Request.Context(), flavor, req.Email, c.ClientIP())
	if err != nil {
		h.fail(c, flavor, err)
		return nil, false
	}
	return result, true
}

func (h *MailHandler) fail(c *gin.Context, flavor domain.Flavor, err error) {
	var limited *service.RateLimitedError
	if errors.As(err, &limited) {
		middleware.SetRateLimitHeaders(c, limited.Decision, h.now())
		if h.onBlock != nil {
			h.onBlock(c.FullPath())
		}
	}

	status, key, msg := mapError(flavor, err)
	if status >= http.StatusInternalServerError {
		h.log.Error("mail retrieval failed",
			zap.String("flavor", flavor.String()),
			zap.Int("status", status),
			zap.Error(err),
		)
	} else {
		h.log.Info("mail retrieval rejected",
			zap.String("flavor", flavor.String()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeError(c, status, key, msg)
}

// FormatReceivedAt 格式化为 "March 23rd, 12:58 PM"（UTC）
func FormatReceivedAt(t time.Time) string {
	t = t.UTC()
	return t.Format("January") + " " + ordinal(t.Day()) + ", " + t.Format("3:04 PM")
}

func ordinal(day int) string {
	suffix := "th"
	switch day % 100 {
	case 11, 12, 13:
	default:
		switch day % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(day) + suffix
}
