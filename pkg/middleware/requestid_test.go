package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TestRequestID はRequestIDミドルウェアを検証する。
func TestRequestID(t *testing.T) {
	t.Parallel()

	t.Run("ヘッダーが無い場合にUUIDを生成してリクエストとレスポンスに設定すること", func(t *testing.T) {
		t.Parallel()

		var inContext, inRequest string
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			inContext = GetRequestID(c)
			inRequest = c.Request.Header.Get(HeaderRequestID)
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		if _, err := uuid.Parse(inContext); err != nil {
			t.Errorf("リクエストIDがUUIDではない: %q", inContext)
		}
		if inRequest != inContext {
			t.Errorf("リクエストヘッダー = %q, want %q", inRequest, inContext)
		}
		if got := w.Header().Get(HeaderRequestID); got != inContext {
			t.Errorf("レスポンスヘッダー = %q, want %q", got, inContext)
		}
	})

	t.Run("クライアントが指定したIDをそのまま使うこと", func(t *testing.T) {
		t.Parallel()

		var got string
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			got = GetRequestID(c)
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderRequestID, "client-id-1")
		router.ServeHTTP(httptest.NewRecorder(), req)

		if got != "client-id-1" {
			t.Errorf("GetRequestID() = %q, want %q", got, "client-id-1")
		}
	})

	t.Run("ミドルウェアが無い場合は空文字列を返すこと", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		if got := GetRequestID(c); got != "" {
			t.Errorf("GetRequestID() = %q, want empty string", got)
		}
	})
}
