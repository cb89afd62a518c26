package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.Counter.GetValue()
}

func TestMessagesTotal_Increments(t *testing.T) {
	MessagesTotal.Reset()

	MessagesTotal.WithLabelValues("fraud").Inc()
	MessagesTotal.WithLabelValues("fraud").Inc()
	MessagesTotal.WithLabelValues("advice").Inc()

	c, err := MessagesTotal.GetMetricWithLabelValues("fraud")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues failed: %v", err)
	}
	if got := counterValue(t, c); got != 2.0 {
		t.Errorf("expected fraud counter 2, got %f", got)
	}
}

func TestMiddleware_RecordsRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	router.GET("/v1/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	c, err := HTTPRequestsTotal.GetMetricWithLabelValues("GET", "/v1/ping", "2xx")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues failed: %v", err)
	}
	if got := counterValue(t, c); got != 1.0 {
		t.Errorf("expected request counter 1, got %f", got)
	}
}

func TestStatusBucket(t *testing.T) {
	cases := map[int]string{
		200: "2xx",
		201: "2xx",
		301: "3xx",
		404: "4xx",
		500: "5xx",
	}
	for code, want := range cases {
		if got := statusBucket(code); got != want {
			t.Errorf("statusBucket(%d) = %s, want %s", code, got, want)
		}
	}
}
