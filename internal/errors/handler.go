package errors

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ragatool/backend-go/internal/metrics"
	"go.uber.org/zap"
)

// ErrorHandler 将错误转换为 JSON 响应
type ErrorHandler struct {
	logger *zap.Logger
}

// NewErrorHandler 创建错误处理器
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{logger: logger}
}

// ErrorBody 错误响应体，detail 为可读信息
type ErrorBody struct {
	Detail  string      `json:"detail"`
	Code    ErrorCode   `json:"code"`
	Type    string      `json:"type"`
	Details interface{} `json:"details,omitempty"`
}

// Body 构建错误响应体
func Body(appErr *AppError) ErrorBody {
	body := ErrorBody{
		Detail: appErr.Message,
		Code:   appErr.Code,
		Type:   getErrorTypeString(appErr.Type),
	}
	if appErr.Details != nil && shouldIncludeDetails(appErr) {
		body.Details = appErr.Details
	}
	return body
}

// Handle 记录错误并写出响应，返回最终的 AppError
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) *AppError {
	appErr := h.Record(r, err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPCode)
	if encErr := json.NewEncoder(w).Encode(Body(appErr)); encErr != nil {
		h.logger.Error("Failed to write error response", zap.Error(encErr))
	}
	return appErr
}

// Record 只记录日志与指标，由调用方负责输出
func (h *ErrorHandler) Record(r *http.Request, err error) *AppError {
	appErr := GetAppError(err)
	metrics.HTTPErrors.WithLabelValues(string(appErr.Code), getErrorTypeString(appErr.Type)).Inc()
	h.logError(appErr, r)
	return appErr
}

func (h *ErrorHandler) logError(appErr *AppError, r *http.Request) {
	fields := []zap.Field{
		zap.String("error_code", string(appErr.Code)),
		zap.Int("http_code", appErr.HTTPCode),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote_addr", ClientIP(r)),
	}
	if appErr.Cause != nil {
		fields = append(fields, zap.NamedError("cause", appErr.Cause))
	}

	switch appErr.Type {
	case ErrorTypeSystem:
		h.logger.Error(appErr.Message, fields...)
	case ErrorTypeValidation:
		h.logger.Info(appErr.Message, fields...)
	default:
		h.logger.Warn(appErr.Message, fields...)
	}
}

func getErrorTypeString(errorType ErrorType) string {
	switch errorType {
	case ErrorTypeSystem:
		return "system"
	case ErrorTypeBusiness:
		return "business"
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeExternal:
		return "external"
	default:
		return "unknown"
	}
}

// shouldIncludeDetails 系统错误不暴露详情
func shouldIncludeDetails(appErr *AppError) bool {
	return appErr.Type != ErrorTypeSystem
}

// ClientIP 获取客户端IP地址
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
