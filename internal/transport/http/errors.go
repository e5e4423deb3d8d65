package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"notika/backend/internal/auth"
	"notika/backend/internal/domain"
	"notika/backend/internal/middleware"
	"notika/backend/internal/service"
)

// errorMapping 业务错误到 HTTP 状态码与提示信息
type errorMapping struct {
	status int
	msg    string
}

// 按顺序匹配，包裹类错误（ValidationError）放在最后
var errorMappings = []struct {
	target error
	errorMapping
}{
	{domain.ErrReceiverNotFound, errorMapping{http.StatusBadRequest, "Alıcı bulunamadı"}},
	{domain.ErrEmailExists, errorMapping{http.StatusConflict, "Bu e-posta adresi zaten kayıtlı"}},
	{domain.ErrUsernameExists, errorMapping{http.StatusConflict, "Bu kullanıcı adı zaten alınmış"}},
	{domain.ErrInvalidCredentials, errorMapping{http.StatusUnauthorized, MsgInvalidCredentials}},
	{auth.ErrUserInactive, errorMapping{http.StatusForbidden, "Hesabınız devre dışı bırakılmış"}},
	{auth.ErrNoDestination, errorMapping{http.StatusForbidden, "Bu hesap için yetkili bir sayfa yok"}},
	{service.ErrTooManyComments, errorMapping{http.StatusTooManyRequests, "Çok fazla yorum gönderdiniz, lütfen bekleyin"}},
	{domain.ErrUnauthorized, errorMapping{http.StatusUnauthorized, MsgAuthRequired}},
	{domain.ErrNotFound, errorMapping{http.StatusNotFound, MsgNotFound}},
	{domain.ErrValidation, errorMapping{http.StatusBadRequest, MsgInvalidRequest}},
}

// lookupError 查找错误对应的状态码与提示，未知错误返回 500
func lookupError(err error) errorMapping {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			mapping := m.errorMapping
			var verr *domain.ValidationError
			if m.target == domain.ErrValidation && errors.As(err, &verr) {
				mapping.msg = verr.Error()
			}
			return mapping
		}
	}
	return errorMapping{http.StatusInternalServerError, MsgInternalError}
}

// handleError 将业务错误写成统一响应，500 类错误记录日志
func handleError(c *gin.Context, log *zap.Logger, err error) {
	m := lookupError(err)
	if m.status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(middleware.ContextRequestID)),
			zap.Error(err),
		)
	}
	Error(c, m.status, m.msg)
}

// 通用错误消息
const (
	MsgInvalidRequest     = "Geçersiz istek"
	MsgInvalidID          = "Geçersiz kimlik"
	MsgAuthRequired       = "Oturum açmanız gerekiyor"
	MsgInvalidCredentials = "Kullanıcı adı veya şifre hatalı"
	MsgTokenInvalid       = "Geçersiz veya süresi dolmuş oturum"
	MsgNotFound           = "Kayıt bulunamadı"
	MsgInternalError      = "Sunucu hatası, lütfen daha sonra tekrar deneyin"
)
