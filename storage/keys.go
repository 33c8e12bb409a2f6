package storage

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// 资产在存储桶中的目录前缀
	CoverFolder = "covers"
	AudioFolder = "audio"
)

var nonAlphaNumeric = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)
var multipleSpaces = regexp.MustCompile(`\s+`)

// sanitizeBaseName 清理原始文件名，去掉扩展名和不安全字符
func sanitizeBaseName(originalName string) string {
	base := strings.TrimSuffix(originalName, filepath.Ext(originalName))
	base = multipleSpaces.ReplaceAllString(strings.TrimSpace(base), "_")
	base = nonAlphaNumeric.ReplaceAllString(base, "")

	maxLength := 100
	if len(base) > maxLength {
		base = base[:maxLength]
	}
	if base == "" {
		base = "untitled"
	}
	return base
}

// NewObjectKey 根据目录前缀和原始文件名生成对象键，
// 形如 covers/<uuid>-<name>.jpg。uuid v4 由加密随机源生成，
// 并发请求之间不会碰撞，键也无法被猜测。
func NewObjectKey(folder, originalName, fallbackExt string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = fallbackExt
	}
	return folder + "/" + uuid.NewString() + "-" + sanitizeBaseName(originalName) + ext
}

// OriginalNameFromKey 从对象键还原原始文件名（去掉uuid前缀），
// 用于下载时的 Content-Disposition。
func OriginalNameFromKey(key string) string {
	name := key
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		name = key[idx+1:]
	}
	// uuid 固定36字符，其后是连接符
	if len(name) > 37 && name[36] == '-' {
		return name[37:]
	}
	return name
}
