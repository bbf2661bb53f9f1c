package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"platforma/internal/dynquery"
	"platforma/internal/records"
	"platforma/internal/schema"
)

// Deps — зависимости HTTP-слоя.
type Deps struct {
	Engine *dynquery.Engine
	Store  *records.Store
	Dict   *schema.Dictionary
}

// ==== Tenant ====

const tenantHeader = "X-Tenant-ID"

// TenantMiddleware кладёт tenant из заголовка в контекст. AuthN/Z живёт
// выше по стеку (gateway), здесь значению доверяем.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		t := strings.TrimSpace(c.GetHeader(tenantHeader))
		if t == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Missing " + tenantHeader + " header"})
			return
		}
		c.Set("tenant", t)
		c.Next()
	}
}

func tenantID(c *gin.Context) string { return c.GetString("tenant") }

func actor(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("X-Actor"))
}

// ==== Запросы ====

// GET /api/t/:table?q=&filter=&sort=&page=&pageSize=
func QueryHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts := parseListParams(c.Request.URL.Query())
		res, err := d.Engine.Query(c.Request.Context(), tenantID(c), c.Param("table"), opts)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// POST /api/t/:table/query — тот же запрос, но фильтр в теле
// (длинные деревья не влезают в query-строку).
func QueryBodyHandler(d Deps) gin.HandlerFunc {
	type body struct {
		Q        string          `json:"q"`
		Filter   json.RawMessage `json:"filter"`
		Sort     string          `json:"sort"`
		Page     int             `json:"page"`
		PageSize int             `json:"pageSize"`
	}
	return func(c *gin.Context) {
		var b body
		if err := c.ShouldBindJSON(&b); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		opts := dynquery.QueryOptions{
			Q:        strings.TrimSpace(b.Q),
			Filter:   string(b.Filter),
			Sort:     strings.TrimSpace(b.Sort),
			Page:     b.Page,
			PageSize: b.PageSize,
		}
		res, err := d.Engine.Query(c.Request.Context(), tenantID(c), c.Param("table"), opts)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// GET /api/t/:table/count?q=&filter=
func CountHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts := parseListParams(c.Request.URL.Query())
		n, err := d.Engine.Count(c.Request.Context(), tenantID(c), c.Param("table"), opts.Filter, opts.Q)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": n})
	}
}

// GET /api/t/:table/:id
func GetOneHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := d.Engine.Get(c.Request.Context(), tenantID(c), c.Param("table"), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// GET /api/t/:table/:id/walk/:field?fields=a,b
func DotWalkHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := d.Engine.DotWalk(c.Request.Context(), tenantID(c),
			c.Param("table"), c.Param("id"), c.Param("field"),
			parseProjection(c.Query("fields")))
		if err != nil {
			writeError(c, err)
			return
		}
		// незаполненная ссылка — валидное состояние
		if rec == nil {
			c.JSON(http.StatusOK, gin.H{"record": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"record": rec})
	}
}

// ==== Write-path ====

// POST /api/t/:table
func CreateHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var obj map[string]any
		if err := c.ShouldBindJSON(&obj); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		rec, err := d.Store.Create(c.Request.Context(), tenantID(c), c.Param("table"), obj, actor(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, rec)
	}
}

// PATCH /api/t/:table/:id
func PatchHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch map[string]any
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		rec, err := d.Store.Update(c.Request.Context(), tenantID(c), c.Param("table"), c.Param("id"), patch, actor(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// DELETE /api/t/:table/:id (soft delete)
func DeleteHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Store.SoftDelete(c.Request.Context(), tenantID(c), c.Param("table"), c.Param("id"), actor(c)); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /api/t/:table/:id/restore
func RestoreHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Store.Restore(c.Request.Context(), tenantID(c), c.Param("table"), c.Param("id"), actor(c)); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// ==== Meta ====

// GET /api/meta
func MetaListHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		tables, err := d.Dict.Tables(c.Request.Context(), tenantID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]gin.H, 0, len(tables))
		for _, t := range tables {
			out = append(out, gin.H{"name": t.Name, "label": t.Label})
		}
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/meta/:table
func MetaTableHandler(d Deps) gin.HandlerFunc {
	type fieldOut struct {
		Name       string `json:"name"`
		Type       string `json:"type"`
		References string `json:"references,omitempty"`
	}
	return func(c *gin.Context) {
		table := c.Param("table")
		t, err := d.Dict.Table(c.Request.Context(), tenantID(c), table)
		if err != nil {
			writeError(c, err)
			return
		}
		defs, err := d.Dict.ActiveFields(c.Request.Context(), tenantID(c), table)
		if err != nil {
			writeError(c, err)
			return
		}
		fields := make([]fieldOut, 0, len(defs))
		for _, f := range defs {
			fields = append(fields, fieldOut{
				Name:       f.Name,
				Type:       string(f.Type),
				References: f.ReferenceTable,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"name":   t.Name,
			"label":  t.Label,
			"fields": fields,
		})
	}
}
