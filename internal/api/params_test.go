package api

import (
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"platforma/internal/dynquery"
	"platforma/internal/schema"
)

func TestParseListParams(t *testing.T) {
	q, err := url.ParseQuery("q=router&filter={\"field\":\"status\"}&sort=status:asc&page=3&pageSize=25")
	require.NoError(t, err)

	opts := parseListParams(q)
	assert.Equal(t, "router", opts.Q)
	assert.Equal(t, `{"field":"status"}`, opts.Filter)
	assert.Equal(t, "status:asc", opts.Sort)
	assert.Equal(t, 3, opts.Page)
	assert.Equal(t, 25, opts.PageSize)
}

func TestParseListParamsDefaults(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		page     int
		pageSize int
	}{
		{"empty query", "", 1, 50},
		{"garbage numbers", "page=abc&pageSize=-5", 1, 50},
		{"zero page", "page=0&pageSize=0", 1, 50},
		{"oversized pageSize", "pageSize=99999", 1, 50},
		{"snake_case alias", "page_size=10", 1, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			opts := parseListParams(q)
			assert.Equal(t, tt.page, opts.Page)
			assert.Equal(t, tt.pageSize, opts.PageSize)
		})
	}
}

func TestParseProjection(t *testing.T) {
	assert.Nil(t, parseProjection(""))
	assert.Equal(t, []string{"region", "name"}, parseProjection(" region , name ,"))
}

func TestWriteErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation error", &dynquery.ValidationError{Reason: "unknown field: x"}, 400},
		{"table not found", schema.ErrTableNotFound, 404},
		{"anything else", assert.AnError, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			writeError(c, tt.err)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestTenantMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TenantMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.String(200, tenantID(c))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ping", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, 400, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Tenant-ID", "t1")
	r.ServeHTTP(w, req)
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "t1", w.Body.String())
}
