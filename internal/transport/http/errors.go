package httptransport

import (
	"errors"
	"net/http"

	"mailcode/backend/internal/domain"
)

// 通用错误消息
const (
	MsgInvalidRequest  = "Invalid request body"
	MsgEmailRequired   = "Email is required"
	MsgInvalidEmail    = "Invalid email address"
	MsgTooManyRequests = "Too many requests, please try again later."
	MsgInternalError   = "Internal server error"
)

// errorReply 一类错误对应的状态码与消息
type errorReply struct {
	status int
	msg    string
}

// flavorErrors 单个接口的错误映射
type flavorErrors struct {
	key          string
	invalid      errorReply
	unauthorized errorReply
	notFound     errorReply
	noBody       errorReply
	noValue      errorReply // 链接或验证码未找到
	expired      errorReply
	transport    errorReply
	other        errorReply
}

var errorTable = map[domain.Flavor]flavorErrors{
	domain.FlavorResetLink: {
		key:          keyError,
		invalid:      errorReply{http.StatusBadRequest, MsgInvalidEmail},
		unauthorized: errorReply{http.StatusForbidden, "Unauthorized email. The email was not sent to this address."},
		notFound:     errorReply{http.StatusNotFound, "No matching emails found"},
		noBody:       errorReply{http.StatusNotFound, "Email body not found"},
		noValue:      errorReply{http.StatusNotFound, "Reset link not found"},
		expired:      errorReply{http.StatusNotFound, "The email link has expired. Please request again."},
		transport:    errorReply{http.StatusInternalServerError, "Failed to fetch email"},
		other:        errorReply{http.StatusInternalServerError, "Failed to fetch email"},
	},
	domain.FlavorHousehold: {
		key:          keyMessage,
		invalid:      errorReply{http.StatusBadRequest, MsgInvalidEmail},
		unauthorized: errorReply{http.StatusForbidden, "Unauthorized email."},
		notFound:     errorReply{http.StatusNotFound, "No relevant email found!"},
		noBody:       errorReply{http.StatusNotFound, "No email content found!"},
		noValue:      errorReply{http.StatusNotFound, "Verification link not found!"},
		expired:      errorReply{http.StatusBadRequest, "The email link has expired. Please request again."},
		transport:    errorReply{http.StatusServiceUnavailable, "Mail service is temporarily unavailable. Please try again."},
		other:        errorReply{http.StatusInternalServerError, MsgInternalError},
	},
	domain.FlavorSignInCode: {
		key:          keyError,
		invalid:      errorReply{http.StatusBadRequest, MsgInvalidEmail},
		unauthorized: errorReply{http.StatusForbidden, "Unauthorized email. The email was not sent to this address."},
		notFound:     errorReply{http.StatusInternalServerError, "No Netflix code email found"},
		noBody:       errorReply{http.StatusInternalServerError, "Email body not found"},
		noValue:      errorReply{http.StatusInternalServerError, "Code not found in email"},
		expired:      errorReply{http.StatusInternalServerError, "The latest code email has expired"},
		transport:    errorReply{http.StatusInternalServerError, "Failed to fetch email"},
		other:        errorReply{http.StatusInternalServerError, MsgInternalError},
	},
}

// mapError 将检索错误映射为 (状态码, 字段名, 消息)
func mapError(flavor domain.Flavor, err error) (int, string, string) {
	table, ok := errorTable[flavor]
	if !ok {
		return http.StatusInternalServerError, keyError, MsgInternalError
	}

	var reply errorReply
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		reply = table.invalid
	case errors.Is(err, domain.ErrRateLimited):
		reply = errorReply{http.StatusTooManyRequests, MsgTooManyRequests}
	case errors.Is(err, domain.ErrUnauthorizedRecipient):
		reply = table.unauthorized
	case errors.Is(err, domain.ErrExpired):
		reply = table.expired
	case errors.Is(err, domain.ErrNoBody):
		reply = table.noBody
	case errors.Is(err, domain.ErrLinkNotFound), errors.Is(err, domain.ErrCodeNotFound):
		reply = table.noValue
	case errors.Is(err, domain.ErrNotFound):
		reply = table.notFound
	case errors.Is(err, domain.ErrTransport):
		reply = table.transport
	default:
		reply = table.other
	}
	return reply.status, table.key, reply.msg
}

// accessCodeStatus 访问码错误的状态码与消息
func accessCodeStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidExpiry):
		return http.StatusBadRequest, "Valid expiryDays (>= 1) is required"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrAccessCodeExists):
		return http.StatusConflict, "Access code already exists"
	case errors.Is(err, domain.ErrAccessCodeNotFound):
		return http.StatusNotFound, "Code not found"
	default:
		return http.StatusInternalServerError, MsgInternalError
	}
}
