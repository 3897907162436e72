package rag

import (
	"crypto/sha256"
	"encoding/hex"
)

// FingerprintLength 指纹长度（十六进制字符数）
const FingerprintLength = sha256.Size * 2

// Fingerprint 计算分块文本的内容指纹（SHA-256 小写十六进制）
// 同一文本在任意索引、任意调用中都得到同一指纹，作为文档主键与去重键。
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
