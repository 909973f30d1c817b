package utils

import (
	"errors"
	"net/http"
	"testing"
)

func TestApiErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        *ApiError
		statusCode int
		errorCode  string
	}{
		{"资源不存在", CreateNotFoundError("客户分群"), http.StatusNotFound, "RESOURCE_NOT_FOUND"},
		{"未授权", CreateUnauthorizedError(), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"权限不足", CreateForbiddenError(), http.StatusForbidden, "FORBIDDEN"},
		{"错误请求", CreateBadRequestError("参数无效"), http.StatusBadRequest, "BAD_REQUEST"},
		{"非法状态流转", CreateInvalidTransitionError(errors.New("活动不处于草稿状态")), http.StatusConflict, "INVALID_TRANSITION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.StatusCode != tt.statusCode {
				t.Errorf("状态码 = %d, 期望 %d", tt.err.StatusCode, tt.statusCode)
			}
			if tt.err.ErrorCode != tt.errorCode {
				t.Errorf("错误码 = %q, 期望 %q", tt.err.ErrorCode, tt.errorCode)
			}
		})
	}
}

func TestApiErrorMessage(t *testing.T) {
	err := CreateInvalidTransitionError(errors.New("线索已结束"))
	if err.Error() != "线索已结束" {
		t.Errorf("错误消息 = %q, 期望保留守卫的原始消息", err.Error())
	}

	notFound := CreateNotFoundError("线索")
	if notFound.Error() != "线索不存在" {
		t.Errorf("错误消息 = %q", notFound.Error())
	}
}
