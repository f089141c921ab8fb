package services

import (
	"time"

	"rentdesk/pkg/period"
)

// Clock 当前时间来源，计费逻辑不直接读取系统时间
type Clock interface {
	Now() time.Time
}

type systemClock struct {
	loc *time.Location
}

// NewClock 按计费时区返回系统时钟
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// FixedClock 固定时间（测试与命令行补跑使用）
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time {
	return c.T
}

// today 计费时区下的今天（UTC零点表示）
func today(c Clock) time.Time {
	return period.Date(c.Now())
}
