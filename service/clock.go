package service

import "time"

// Clock 时钟抽象
// 生命周期推导、状态机时间戳、调度全部经由注入的时钟取当前时间，
// 避免散落的 time.Now() 导致分类结果不可测试
type Clock interface {
	Now() time.Time
}

// SystemClock 系统时钟
type SystemClock struct{}

// Now 返回当前时间
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock 固定时钟，测试用
type FixedClock struct {
	Time time.Time
}

// Now 返回固定时间
func (c FixedClock) Now() time.Time {
	return c.Time
}
