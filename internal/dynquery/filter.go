package dynquery

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError — ошибка входа (битый фильтр, неизвестное поле, плохой
// dot-walk, неподдерживаемый оператор). Наружу отображается как 4xx и
// всегда отклоняет запрос целиком: частично применённых фильтров не бывает.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func badRequestf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Логика группы фильтра.
const (
	LogicAnd = "AND"
	LogicOr  = "OR"
)

// Condition — листовое условие. Field может быть "ref.target" (один хоп).
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Group — булево дерево условий. Пустая группа эквивалентна отсутствию
// фильтра (AND без термов — это «без фильтра», не «матчит всё подряд»).
type Group struct {
	Logic      string      `json:"logic,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
	Groups     []Group     `json:"groups,omitempty"`
}

// ParseFilter разбирает сырой JSON фильтра. Допускаем либо группу, либо
// одиночное условие на верхнем уровне.
func ParseFilter(raw string) (*Group, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var node struct {
		Logic      string      `json:"logic"`
		Conditions []Condition `json:"conditions"`
		Groups     []Group     `json:"groups"`
		Field      string      `json:"field"`
		Operator   string      `json:"operator"`
		Value      any         `json:"value"`
	}
	if err := json.Unmarshal([]byte(raw), &node); err != nil {
		return nil, badRequestf("invalid filter format")
	}
	g := &Group{Logic: node.Logic, Conditions: node.Conditions, Groups: node.Groups}
	if node.Field != "" {
		g.Conditions = append(g.Conditions, Condition{
			Field:    node.Field,
			Operator: node.Operator,
			Value:    node.Value,
		})
	} else if node.Operator != "" || node.Value != nil {
		// условие без field — это битый фильтр, а не «нет фильтра»;
		// молча выбросить его значило бы отдать весь scope
		return nil, badRequestf("invalid filter format")
	}
	return g, nil
}
