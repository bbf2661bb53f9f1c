package dynquery

import (
	"strings"

	"platforma/internal/schema"
)

// Системные ключи сортировки минуют словарь и мапятся на физические колонки.
var systemSortCols = map[string]string{
	"id":         "r.record_id",
	"created_at": "r.created_at",
	"updated_at": "r.updated_at",
}

const defaultOrder = "r.created_at desc"

// resolveSort разбирает "field:dir,field:dir" в ORDER BY.
// Направление по умолчанию (и при мусоре) — DESC. Невалидные токены молча
// пропускаются: сортировка — рекомендательный вход, в отличие от фильтра.
// Dot-walk ключи не поддерживаются — только прямые поля основной таблицы.
func resolveSort(raw string, main map[string]schema.FieldDef) string {
	var parts []string
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		name, dir := tok, ""
		if i := strings.IndexByte(tok, ':'); i >= 0 {
			name, dir = strings.TrimSpace(tok[:i]), strings.TrimSpace(tok[i+1:])
		}
		d := "desc"
		if strings.EqualFold(dir, "asc") {
			d = "asc"
		}

		if col, ok := systemSortCols[name]; ok {
			parts = append(parts, col+" "+d)
			continue
		}
		if !schema.ValidFieldName(name) {
			continue
		}
		if _, ok := main[name]; !ok {
			continue
		}
		parts = append(parts, "r.data->>'"+name+"' "+d)
	}

	if len(parts) == 0 {
		parts = append(parts, defaultOrder)
	}
	// стабильность при равных ключах
	parts = append(parts, "r.id desc")
	return strings.Join(parts, ", ")
}
