package telemetry_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/victornm/hotcold/internal/telemetry"
)

func TestGinLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(telemetry.GinLogger())
	e.GET("/teapot/:id", func(c *gin.Context) {
		c.Status(http.StatusTeapot)
	})

	for _, path := range []string{"/teapot/1", "/teapot/2", "/missing"} {
		w := httptest.NewRecorder()
		e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, 2, testutil.CollectAndCount(telemetry.HTTPRequestDuration),
		"requests are grouped by route, unmatched ones under an empty route")
}
