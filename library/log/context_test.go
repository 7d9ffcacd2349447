package log

import (
	"context"
	"net/http/httptest"
	"testing"

	gmw "github.com/Laisky/gin-middlewares/v7"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newNamedLogger(t *testing.T, name string) logSDK.Logger {
	t.Helper()
	logger, err := logSDK.NewConsoleWithName(name, logSDK.LevelInfo)
	require.NoError(t, err)
	return logger
}

func TestFromContextFallsBackWithoutRequestLogger(t *testing.T) {
	fallback := newNamedLogger(t, "fallback")

	require.True(t, FromContext(context.Background(), fallback) == fallback)
	require.True(t, FromContext(nil, fallback) == fallback) //nolint:staticcheck // nil context is tolerated
	require.Nil(t, FromContext(context.Background(), nil))

	gctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	require.True(t, FromContext(gctx, fallback) == fallback)
}

func TestFromContextPrefersRequestLogger(t *testing.T) {
	fallback := newNamedLogger(t, "fallback")
	requestLogger := newNamedLogger(t, "request")

	ctx := gmw.SetLogger(context.Background(), requestLogger)
	require.True(t, FromContext(ctx, fallback) == requestLogger)

	gctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	gmw.SetLogger(gctx, requestLogger)
	require.True(t, FromContext(gctx, fallback) == requestLogger)
}
