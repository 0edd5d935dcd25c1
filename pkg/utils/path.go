package utils

import (
	"path"
	"strings"
)

// 默认允许分享的虚拟路径根
var DefaultShareRoots = []string{"/home", "/shared"}

// NormalizePath 统一虚拟路径格式：单个前导斜杠、无尾部斜杠、无重复斜杠。
// 解析器和各个管理器都必须通过它比较路径。
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	// path.Clean 会折叠重复斜杠并按字面处理 . 和 ..
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return "/"
	}
	return strings.TrimSuffix(cleaned, "/")
}

// IsSameOrDescendant 判断 p 是否等于 root 或位于 root 之下。
// 两个参数都应是 NormalizePath 的结果。
func IsSameOrDescendant(p, root string) bool {
	if p == "" || root == "" {
		return false
	}
	if p == root {
		return true
	}
	if root == "/" {
		return true
	}
	return strings.HasPrefix(p, root+"/")
}

// IsShareableRoot 判断路径是否位于某个允许的根之下（根本身不可分享）
func IsShareableRoot(p string, roots []string) bool {
	p = NormalizePath(p)
	if len(roots) == 0 {
		roots = DefaultShareRoots
	}
	for _, root := range roots {
		root = NormalizePath(root)
		if root == "" || root == "/" {
			continue
		}
		if strings.HasPrefix(p, root+"/") {
			return true
		}
	}
	return false
}

// BaseName 返回路径最后一段，用作显示名称
func BaseName(p string) string {
	p = NormalizePath(p)
	if p == "" || p == "/" {
		return ""
	}
	return path.Base(p)
}
