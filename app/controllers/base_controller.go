package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/beego/beego/v2/server/web"
	"github.com/go-playground/validator/v10"
	apperrors "github.com/ragatool/backend-go/internal/errors"
	"github.com/ragatool/backend-go/internal/logger"
)

var validate = validator.New()

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	_ = c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONAppError 按 AppError 的状态码输出错误，非 AppError 视为 500
func (c *BaseController) JSONAppError(err error) {
	appErr := apperrors.NewErrorHandler(logger.Named("http")).Record(c.Ctx.Request, err)
	c.JSON(appErr.HTTPCode, apperrors.Body(appErr))
}

// bindJSON 解析请求体并校验 validate 标签
func (c *BaseController) bindJSON(v interface{}) bool {
	body := c.Ctx.Input.RequestBody
	if len(body) == 0 && c.Ctx.Request.Body != nil {
		body, _ = io.ReadAll(c.Ctx.Request.Body)
	}
	if err := json.Unmarshal(body, v); err != nil {
		c.JSONAppError(apperrors.NewValidationError("Invalid JSON body").WithCause(err))
		return false
	}
	if err := validate.Struct(v); err != nil {
		c.JSONAppError(apperrors.NewErrorTranslator().Translate(err))
		return false
	}
	return true
}
