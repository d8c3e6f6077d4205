package businessflow

import (
	"context"

	"github.com/amirphl/chat-sequencer/utils"
)

// requestID returns the request id the handler stored in ctx, or ""
func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(utils.RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// normalizePage applies the default page size and caps the limit
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = utils.DefaultPageSize
	}
	if limit > utils.MaxPageSize {
		limit = utils.MaxPageSize
	}
	return page, limit
}
