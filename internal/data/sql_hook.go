package data

import (
	"context"
	"time"

	"github.com/fatih/color"
)

type Hooks struct{}

func (h *Hooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	return context.WithValue(ctx, "begin", time.Now()), nil
}

func (h *Hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	begin := ctx.Value("begin").(time.Time)
	d := time.Since(begin)
	// 深层级多边形的写入与简化本来就慢，阈值放宽到 1s
	if d > time.Second {
		color.Red("%v slow sql: %s .took: %s\n", time.Now().Format(time.RFC3339), query, d)
	}
	return ctx, nil
}
