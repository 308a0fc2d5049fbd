// Package utils 提供通用工具函数
package utils

import (
	"regexp"
	"strings"
	"time"
)

var phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// ValidatePhone 验证手机号
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// StartOfDay 返回 t 所在本地日的零点
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.In(time.Local).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// StartOfMonth 返回 t 所在本地月的第一天零点
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.In(time.Local).Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.Local)
}

// DayWindow 返回 [day 00:00, day+1 00:00) 的本地时间窗口
func DayWindow(t time.Time) (time.Time, time.Time) {
	start := StartOfDay(t)
	return start, start.AddDate(0, 0, 1)
}

// Pagination 分页参数
type Pagination struct {
	Page  int `json:"page" form:"page"`
	Limit int `json:"limit" form:"limit"`
}

// 分页默认值
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// GetOffset 获取偏移量
func (p *Pagination) GetOffset() int {
	return (p.Page - 1) * p.Limit
}

// Normalize 规范化分页参数
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
}

// Sort 排序参数
type Sort struct {
	Field string
	Desc  bool
}

// ParseSort 根据白名单解析排序字段，字段不合法时返回默认值
// allowed 的 key 为对外字段名，value 为数据库列名
func ParseSort(sortBy, sortOrder string, allowed map[string]string, def Sort) Sort {
	column, ok := allowed[sortBy]
	if !ok {
		return def
	}
	return Sort{Field: column, Desc: !strings.EqualFold(sortOrder, "asc")}
}

// Clause 返回 ORDER BY 子句
func (s Sort) Clause() string {
	if s.Desc {
		return s.Field + " DESC"
	}
	return s.Field + " ASC"
}
