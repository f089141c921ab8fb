package period

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// LabelLayout 月份标签格式，例如 Mar-2025
const LabelLayout = "Jan-2006"

var labelPattern = regexp.MustCompile(`^[A-Z][a-z]{2}-\d{4}$`)

var monthAbbr = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Date 截断为日期（UTC零点），账单日期一律以此形式存储
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthStart 所在月份第一天
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NextMonthStart 下个月第一天
func NextMonthStart(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, 0)
}

// PrevMonthStart 上个月第一天
func PrevMonthStart(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, -1, 0)
}

// DaysInMonth 当月总天数
func DaysInMonth(t time.Time) int {
	return NextMonthStart(t).AddDate(0, 0, -1).Day()
}

// RemainingDays 当月剩余天数（含当天）
func RemainingDays(t time.Time) int {
	return DaysInMonth(t) - t.Day() + 1
}

// SameMonth 是否为同一自然月
func SameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// Ceil10 向上取整到10的倍数，仅用于非负金额
func Ceil10(x int64) int64 {
	if x <= 0 {
		return 0
	}
	return (x + 9) / 10 * 10
}

// ProRate 按剩余天数折算月租：ceil10(rent / days * remaining)
// 用整数运算避免浮点误差：ceil(rent*remaining / (10*days)) * 10
func ProRate(rent int64, start time.Time) int64 {
	if rent <= 0 {
		return 0
	}
	days := int64(DaysInMonth(start))
	remaining := int64(RemainingDays(start))
	num := rent * remaining
	den := 10 * days
	return (num + den - 1) / den * 10
}

// ValidLabel 校验月份标签格式
func ValidLabel(label string) bool {
	return labelPattern.MatchString(label)
}

// ParseLabel 将 Mar-2025 解析为该月第一天
func ParseLabel(label string) (time.Time, error) {
	if !ValidLabel(label) {
		return time.Time{}, fmt.Errorf("invalid month format %q, expected e.g. Mar-2025", label)
	}
	parts := strings.SplitN(label, "-", 2)
	month := 0
	for i, abbr := range monthAbbr {
		if abbr == parts[0] {
			month = i + 1
			break
		}
	}
	if month == 0 {
		return time.Time{}, fmt.Errorf("unknown month abbreviation %q", parts[0])
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || year <= 0 {
		return time.Time{}, fmt.Errorf("invalid year in %q", label)
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// Label 格式化为 Mar-2025
func Label(t time.Time) string {
	return t.Format(LabelLayout)
}

// ChargeName 账单名称：月份前三个字母小写 + 两位年份，例如 jan25
func ChargeName(t time.Time) string {
	return strings.ToLower(t.Format("Jan")) + t.Format("06")
}
