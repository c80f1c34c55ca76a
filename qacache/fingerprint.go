// Package qacache 实现问答结果缓存：内存映射 + 可插拔持久化存储。
package qacache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint 计算查询指纹：对归一化查询与影响答案的参数取 sha256。
// 大小写与首尾空白不影响指纹；top_k、自定义指令、追问开关参与散列。
func Fingerprint(query string, topK int, customInstruction string, followup bool) string {
	key := fmt.Sprintf("%s|%d|%s|%t",
		strings.ToLower(strings.TrimSpace(query)),
		topK,
		strings.TrimSpace(customInstruction),
		followup,
	)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
