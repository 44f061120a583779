// ABOUTME: Built-in middleware: cost annotation from the model catalog and call logging.
// ABOUTME: Cost middleware fills Response.Usage.CostUSD so callers account spend uniformly.
package llm

import (
	"context"
	"fmt"
	"time"
)

// CostMiddleware fills Usage.CostUSD on every response using the catalog's
// pricing for the response model.
func CostMiddleware(catalog *Catalog) Middleware {
	return func(ctx context.Context, req Request, next NextFunc) (*Response, error) {
		resp, err := next(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.Usage.CostUSD == 0 {
			resp.Usage.CostUSD = catalog.CostForUsage(resp.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
		}
		return resp, nil
	}
}

// LoggingMiddleware reports each call's model, duration, token usage, and
// outcome to the sink.
func LoggingMiddleware(sink func(string)) Middleware {
	return func(ctx context.Context, req Request, next NextFunc) (*Response, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			sink(fmt.Sprintf("llm call model=%s elapsed=%s error=%v", req.Model, elapsed, err))
			return nil, err
		}
		sink(fmt.Sprintf("llm call model=%s elapsed=%s in=%d out=%d cost=$%.4f",
			resp.Model, elapsed, resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.CostUSD))
		return resp, nil
	}
}
