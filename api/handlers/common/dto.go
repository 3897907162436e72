package common

// APIResponse 通用响应结构
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// MessageResponse 只有提示信息的响应
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse 统一错误返回结构
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
