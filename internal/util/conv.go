package util

import (
	"strconv"
)

// MustParseUint 将字符串转换为无符号整数，解析失败时返回 0
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 32)
	return uint(id)
}

// PageParams parses page/limit query values, falling back to defaults and
// capping limit at max.
func PageParams(pageStr, limitStr string, defLimit, max int) (int, int) {
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = defLimit
	}
	if limit > max {
		limit = max
	}
	return page, limit
}
