package schema

import "regexp"

// FieldType — семантический тип поля словаря. Значения в документе хранятся
// как JSON-скаляры; семантику сравнения определяет ТОЛЬКО словарь,
// из содержимого документа типы никогда не выводим.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeText      FieldType = "text"
	TypeChoice    FieldType = "choice"
	TypeInteger   FieldType = "integer"
	TypeDecimal   FieldType = "decimal"
	TypeBoolean   FieldType = "boolean"
	TypeDate      FieldType = "date"
	TypeDatetime  FieldType = "datetime"
	TypeReference FieldType = "reference"
)

// KnownType проверяет, что тип поля нам известен.
func KnownType(t FieldType) bool {
	switch t {
	case TypeString, TypeText, TypeChoice, TypeInteger, TypeDecimal,
		TypeBoolean, TypeDate, TypeDatetime, TypeReference:
		return true
	}
	return false
}

// TableDef — виртуальная таблица тенанта. Создаётся schema-админкой,
// для движка запросов — read-only.
type TableDef struct {
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`
	Label    string `json:"label"`
	IsActive bool   `json:"isActive"`
}

// FieldDef — поле виртуальной таблицы. Identity: (tenant, table, name).
// Для type=reference ReferenceTable обязана указывать на активную таблицу.
type FieldDef struct {
	TenantID       string    `json:"tenantId"`
	TableName      string    `json:"tableName"`
	Name           string    `json:"name"`
	Type           FieldType `json:"type"`
	ReferenceTable string    `json:"referenceTable,omitempty"`
	IsActive       bool      `json:"isActive"`
	Position       int       `json:"position"`
}

var fieldNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidFieldName — общий паттерн имён полей для всех входных токенов.
func ValidFieldName(s string) bool { return fieldNameRe.MatchString(s) }
