package log

import (
	"context"

	gmw "github.com/Laisky/gin-middlewares/v7"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/gin-gonic/gin"
)

// ctxKeyLogger is the key gin-middlewares stores the request logger under.
const ctxKeyLogger gutils.CtxKey = "gmw-logger"

// FromContext returns the request logger set by the gin logger middleware
// (or gmw.SetLogger), and fallback when ctx carries none.
//
// gmw.GetLogger alone never reports absence: it hands back a shared logger that
// bypasses the hooks attached to Logger.
func FromContext(ctx context.Context, fallback logSDK.Logger) logSDK.Logger {
	if ctx == nil {
		return fallback
	}

	var stored any
	switch c := ctx.(type) {
	case *gin.Context:
		if c == nil {
			return fallback
		}
		stored, _ = c.Get(ctxKeyLogger)
	default:
		stored = ctx.Value(ctxKeyLogger)
	}

	if logger, ok := stored.(logSDK.Logger); !ok || logger == nil {
		return fallback
	}
	return gmw.GetLogger(ctx)
}
