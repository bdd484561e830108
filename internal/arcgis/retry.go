package arcgis

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"geoadmin-go/internal/metrics"
)

// Executor 包裹单次出站调用的有界重试。只对瞬时信号退避重试；
// 耗尽后把最后一次瞬时失败当作普通失败上抛；取消立即中止且不消耗重试次数。
type Executor struct {
	MaxAttempts int
	Base        time.Duration // 退避基数
	JitterMax   time.Duration // 抖动上界（均匀分布 [0, JitterMax)）
	Retry429    bool

	sleep func(ctx context.Context, d time.Duration) error // 测试可注入
}

// NewExecutor 创建执行器；非法参数回落到保守默认值。
func NewExecutor(maxAttempts int, base, jitterMax time.Duration, retry429 bool) *Executor {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if jitterMax < 0 {
		jitterMax = 0
	}
	return &Executor{
		MaxAttempts: maxAttempts,
		Base:        base,
		JitterMax:   jitterMax,
		Retry429:    retry429,
		sleep:       sleepCtx,
	}
}

// Do 执行 fn，至多 MaxAttempts 次。
func (e *Executor) Do(ctx context.Context, fn func(context.Context) error) error {
	var last error
	for k := 1; k <= e.MaxAttempts; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if !isTransient(err, e.Retry429) {
			return err
		}
		last = err
		if k == e.MaxAttempts {
			break
		}
		metrics.UpstreamRetriesTotal.Inc()
		if serr := e.sleep(ctx, e.Backoff(k)); serr != nil {
			return serr
		}
	}
	return last
}

// Backoff 第 k 次尝试（1 起）后的等待：Base·3^(k-1) + U[0, JitterMax)。
func (e *Executor) Backoff(k int) time.Duration {
	d := e.Base
	for i := 1; i < k; i++ {
		d *= 3
	}
	if e.JitterMax > 0 {
		d += time.Duration(rand.Int63n(int64(e.JitterMax)))
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
