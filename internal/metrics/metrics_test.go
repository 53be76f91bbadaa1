package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewService(reg)

	s.ReportQueried("toss-impact", "ok", 20*time.Millisecond)
	s.ReportQueried("toss-impact", "error", time.Second)
	s.ReportCacheHit("toss-impact")
	s.LoginAttempt("Admin", "rejected")
	s.Registration("ok")

	assert.Equal(t, 1.0, testutil.ToFloat64(s.ReportQueries.WithLabelValues("toss-impact", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.ReportQueries.WithLabelValues("toss-impact", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.ReportHits.WithLabelValues("toss-impact")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Logins.WithLabelValues("Admin", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Registrations.WithLabelValues("ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(s.ReportDuration))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := NewRegistry()
	s := NewService(reg)
	s.SetBuildInfo("dev", "sqlite")
	s.LoginAttempt("User", "ok")

	rec := httptest.NewRecorder()
	NewHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(text, `ipldash_logins_total{result="ok",role="User"} 1`))
	assert.True(t, strings.Contains(text, `ipldash_build_info{driver="sqlite",version="dev"} 1`))
	assert.True(t, strings.Contains(text, "go_goroutines"))
}
