package dynquery

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"platforma/internal/schema"
)

// Поддерживаемые операторы фильтра. Всё остальное — BadRequest.
const (
	OpIsEmpty    = "is_empty"
	OpEquals     = "equals"
	OpNotEquals  = "not_equals"
	OpContains   = "contains"
	OpStartsWith = "starts_with"
	OpIn         = "in"
	OpGt         = "gt"
	OpGte        = "gte"
	OpLt         = "lt"
	OpLte        = "lte"
	OpAfter      = "after"  // алиас gt, по конвенции для дат
	OpBefore     = "before" // алиас lt
)

var orderingOps = map[string]string{
	OpGt:     ">",
	OpGte:    ">=",
	OpLt:     "<",
	OpLte:    "<=",
	OpAfter:  ">",
	OpBefore: "<",
}

// compileGroup возвращает SQL-фрагмент группы или "" для пустой группы.
func (c *compiler) compileGroup(g *Group) (string, error) {
	logic := strings.ToUpper(strings.TrimSpace(g.Logic))
	switch logic {
	case "":
		logic = LogicAnd
	case LogicAnd, LogicOr:
	default:
		return "", badRequestf("invalid group logic: %s", g.Logic)
	}
	glue := " and "
	if logic == LogicOr {
		glue = " or "
	}

	var parts []string
	for i := range g.Conditions {
		frag, err := c.compileCondition(&g.Conditions[i])
		if err != nil {
			return "", err
		}
		parts = append(parts, frag)
	}
	for i := range g.Groups {
		frag, err := c.compileGroup(&g.Groups[i])
		if err != nil {
			return "", err
		}
		if frag != "" {
			parts = append(parts, frag)
		}
	}

	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	default:
		return "(" + strings.Join(parts, glue) + ")", nil
	}
}

func (c *compiler) compileCondition(cond *Condition) (string, error) {
	rf, err := c.resolveField(cond.Field)
	if err != nil {
		return "", err
	}
	op := strings.ToLower(strings.TrimSpace(cond.Operator))

	switch op {
	case OpIsEmpty:
		return fmt.Sprintf("(%s is null or %s = '')", rf.expr, rf.expr), nil

	case OpEquals, OpNotEquals:
		v, err := coerceValue(rf.ftype, cond.Value)
		if err != nil {
			return "", badRequestf("field %s: %v", cond.Field, err)
		}
		cmp := comparableExpr(rf.ftype, rf.expr)
		if op == OpEquals {
			return fmt.Sprintf("%s = %s", cmp, c.param(v)), nil
		}
		// NULL тоже удовлетворяет «не равно»
		return fmt.Sprintf("%s is distinct from %s", cmp, c.param(v)), nil

	case OpContains:
		// substring всегда по текстовому представлению, без коэрсинга
		return fmt.Sprintf("%s ilike %s", rf.expr,
			c.param("%"+likeEscape(textValue(cond.Value))+"%")), nil

	case OpStartsWith:
		return fmt.Sprintf("%s ilike %s", rf.expr,
			c.param(likeEscape(textValue(cond.Value))+"%")), nil

	case OpIn:
		arr, ok := cond.Value.([]any)
		if !ok {
			return "", badRequestf("field %s: operator in expects an array", cond.Field)
		}
		if len(arr) == 0 {
			// пустой список не матчит ничего
			return "false", nil
		}
		cmp := comparableExpr(rf.ftype, rf.expr)
		ph := make([]string, 0, len(arr))
		for _, item := range arr {
			v, err := coerceValue(rf.ftype, item)
			if err != nil {
				return "", badRequestf("field %s: %v", cond.Field, err)
			}
			ph = append(ph, c.param(v))
		}
		return fmt.Sprintf("%s in (%s)", cmp, strings.Join(ph, ", ")), nil

	default:
		if sqlOp, ok := orderingOps[op]; ok {
			v, err := coerceValue(rf.ftype, cond.Value)
			if err != nil {
				return "", badRequestf("field %s: %v", cond.Field, err)
			}
			return fmt.Sprintf("%s %s %s",
				comparableExpr(rf.ftype, rf.expr), sqlOp, c.param(v)), nil
		}
		return "", badRequestf("unsupported operator: %s", cond.Operator)
	}
}

// comparableExpr приводит текстовое значение документа к семантическому
// типу. Пустую строку превращаем в NULL до каста, иначе каст падал бы и
// сравнения были бы лексикографическими по сырому тексту.
func comparableExpr(t schema.FieldType, expr string) string {
	switch t {
	case schema.TypeInteger:
		return fmt.Sprintf("nullif(%s, '')::bigint", expr)
	case schema.TypeDecimal:
		return fmt.Sprintf("nullif(%s, '')::numeric", expr)
	case schema.TypeBoolean:
		return fmt.Sprintf("nullif(%s, '')::boolean", expr)
	case schema.TypeDate:
		return fmt.Sprintf("nullif(%s, '')::date", expr)
	case schema.TypeDatetime:
		return fmt.Sprintf("nullif(%s, '')::timestamptz", expr)
	default:
		return expr
	}
}

// coerceValue проверяет и приводит значение фильтра к семантическому типу.
func coerceValue(t schema.FieldType, v any) (any, error) {
	switch t {
	case schema.TypeInteger:
		switch x := v.(type) {
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) {
				return nil, fmt.Errorf("expected integer, got %v", v)
			}
			return int64(x), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("expected integer, got %q", x)
			}
			return n, nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", v)
		}

	case schema.TypeDecimal:
		switch x := v.(type) {
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("expected decimal, got %v", v)
			}
			return x, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("expected decimal, got %q", x)
			}
			return f, nil
		default:
			return nil, fmt.Errorf("expected decimal, got %T", v)
		}

	case schema.TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(x)) {
			case "true", "1":
				return true, nil
			case "false", "0":
				return false, nil
			}
		}
		return nil, fmt.Errorf("expected boolean, got %v", v)

	case schema.TypeDate, schema.TypeDatetime:
		// даты передаём текстом, каст делает база
		return textValue(v), nil

	default:
		return textValue(v), nil
	}
}

func textValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", v)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likeEscape(s string) string { return likeEscaper.Replace(s) }
