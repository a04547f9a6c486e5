package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/tablematch/internal/core"
	weblog "github.com/JonMunkholm/tablematch/internal/web/middleware"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx for
// comparison history.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithClientIP(ctx, weblog.ClientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
