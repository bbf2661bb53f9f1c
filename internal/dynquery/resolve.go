package dynquery

import (
	"errors"
	"fmt"
	"strings"

	"platforma/internal/schema"
)

// FieldLookup отдаёт активные поля таблицы по имени (цели dot-walk'ов).
type FieldLookup func(table string) (map[string]schema.FieldDef, error)

// resolvedField — эфемерный результат резолва ссылки на поле:
// SQL-выражение доступа к значению + семантический тип из словаря.
type resolvedField struct {
	expr  string
	ftype schema.FieldType
}

type joinSpec struct {
	alias    string
	refField string
	sql      string
}

// compiler — состояние одной компиляции. Счётчик параметров и реестр
// join'ов живут ровно один запрос: переиспользование между конкурентными
// запросами сломало бы биндинг параметров.
type compiler struct {
	main   map[string]schema.FieldDef
	lookup FieldLookup

	args    []any
	joins   []joinSpec
	aliases map[string]string // reference-поле -> алиас join'а
}

func newCompiler(main map[string]schema.FieldDef, lookup FieldLookup) *compiler {
	return &compiler{main: main, lookup: lookup, aliases: map[string]string{}}
}

// param регистрирует значение и возвращает его позиционный плейсхолдер.
// Номера строго монотонные в пределах компиляции.
func (c *compiler) param(v any) string {
	c.args = append(c.args, v)
	return fmt.Sprintf("$%d", len(c.args))
}

// resolveField резолвит "field" или "ref.target" против словаря.
// Любое несоответствие — жёсткая ошибка, условия молча не выбрасываем.
func (c *compiler) resolveField(field string) (*resolvedField, error) {
	parts := strings.Split(field, ".")
	switch len(parts) {
	case 1:
		name := parts[0]
		if !schema.ValidFieldName(name) {
			return nil, badRequestf("invalid field name: %s", field)
		}
		f, ok := c.main[name]
		if !ok {
			return nil, badRequestf("unknown field: %s", name)
		}
		return &resolvedField{expr: "r.data->>'" + name + "'", ftype: f.Type}, nil

	case 2:
		refName, target := parts[0], parts[1]
		if !schema.ValidFieldName(refName) || !schema.ValidFieldName(target) {
			return nil, badRequestf("invalid dot-walk field: %s", field)
		}
		ref, ok := c.main[refName]
		if !ok {
			return nil, badRequestf("unknown field: %s", refName)
		}
		if ref.Type != schema.TypeReference || ref.ReferenceTable == "" {
			return nil, badRequestf("field %s is not a reference", refName)
		}
		targets, err := c.lookup(ref.ReferenceTable)
		if err != nil {
			if errors.Is(err, schema.ErrTableNotFound) {
				return nil, badRequestf("reference table %s is not available", ref.ReferenceTable)
			}
			return nil, err
		}
		tf, ok := targets[target]
		if !ok {
			return nil, badRequestf("unknown field %s on %s", target, ref.ReferenceTable)
		}
		alias := c.join(ref)
		return &resolvedField{expr: alias + ".data->>'" + target + "'", ftype: tf.Type}, nil

	default:
		return nil, badRequestf("invalid dot-walk field: %s", field)
	}
}

// join регистрирует LEFT JOIN для reference-поля; то же поле в нескольких
// условиях переиспользует один алиас. Tenant, целевая таблица и признак
// удаления — условия JOIN'а, не WHERE: запись с пустой ссылкой должна
// оставаться в выборке (is_empty по dot-walk полю матчит промах join'а).
func (c *compiler) join(ref schema.FieldDef) string {
	if a, ok := c.aliases[ref.Name]; ok {
		return a
	}
	alias := fmt.Sprintf("j%d", len(c.aliases)+1)
	c.aliases[ref.Name] = alias
	c.joins = append(c.joins, joinSpec{
		alias:    alias,
		refField: ref.Name,
		sql: fmt.Sprintf(
			"left join dyn_records %[1]s on %[1]s.tenant_id = r.tenant_id"+
				" and %[1]s.table_name = %[2]s"+
				" and %[1]s.record_id = r.data->>'%[3]s'"+
				" and %[1]s.is_deleted = false",
			alias, c.param(ref.ReferenceTable), ref.Name),
	})
	return alias
}

func (c *compiler) joinSQL() string {
	if len(c.joins) == 0 {
		return ""
	}
	var b strings.Builder
	for _, j := range c.joins {
		b.WriteString(" ")
		b.WriteString(j.sql)
	}
	return b.String()
}
