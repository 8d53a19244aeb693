package services

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle はGitLab APIへのリクエスト間隔を制御します
type Throttle interface {
	Wait(ctx context.Context) error
}

// IntervalThrottle は一定間隔ごとに1リクエストを許可するトークンバケットです
type IntervalThrottle struct {
	limiter *rate.Limiter
}

// NewIntervalThrottle は delay ごとに1回 Wait が戻る Throttle を作成します。
// 初期トークンは消費済みなので、最初の Wait も delay だけ待ちます
func NewIntervalThrottle(delay time.Duration) *IntervalThrottle {
	if delay <= 0 {
		return &IntervalThrottle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	l := rate.NewLimiter(rate.Every(delay), 1)
	l.Allow()
	return &IntervalThrottle{limiter: l}
}

// Wait は次のトークンが得られるまでブロックします
func (t *IntervalThrottle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
