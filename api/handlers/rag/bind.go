package rag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// decodeBody 解析 JSON 请求体
// 兼容旧客户端把参数包在单个外层字段中的写法，如 {"query_request": {...}}。
func decodeBody(r io.Reader, envelope string, dst any) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("读取请求体失败: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return fmt.Errorf("request body is empty")
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if inner, ok := probe[envelope]; ok && len(probe) == 1 {
		raw = inner
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
