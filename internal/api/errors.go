package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"platforma/internal/dynquery"
	"platforma/internal/records"
	"platforma/internal/schema"
)

// writeError мапит таксономию движка на HTTP-статусы:
// ошибки валидации — 400, «нет таблицы/записи» — 404, остальное — 500
// (скомпилированный SQL не должен падать, это дефект движка).
func writeError(c *gin.Context, err error) {
	var ve *dynquery.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Reason})
	case errors.Is(err, schema.ErrTableNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Table not found"})
	case errors.Is(err, records.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
