// api/router.go
package api

import (
	"github.com/gin-gonic/gin"
)

func NewRouter(d Deps) *gin.Engine {
	r := gin.Default()

	apiGroup := r.Group("/api", TenantMiddleware())
	{
		apiGroup.GET("/meta", MetaListHandler(d))
		apiGroup.GET("/meta/:table", MetaTableHandler(d))

		t := apiGroup.Group("/t")
		// статические маршруты — до параметрических
		t.GET("/:table/count", CountHandler(d))
		t.POST("/:table/query", QueryBodyHandler(d))

		t.GET("/:table", QueryHandler(d))
		t.POST("/:table", CreateHandler(d))
		t.GET("/:table/:id", GetOneHandler(d))
		t.PATCH("/:table/:id", PatchHandler(d))
		t.DELETE("/:table/:id", DeleteHandler(d))
		t.POST("/:table/:id/restore", RestoreHandler(d))
		t.GET("/:table/:id/walk/:field", DotWalkHandler(d))
	}

	return r
}

func RunServer(addr string, d Deps) error {
	return NewRouter(d).Run(addr)
}
