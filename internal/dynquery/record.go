package dynquery

import "time"

// Record — восстановленная запись виртуальной таблицы: системные метаданные
// + документ. Ключи документа — имена активных полей на момент записи.
type Record struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy string
	UpdatedBy string
	Data      map[string]any
}

// Flatten отдаёт запись наружу в плоском виде. Пользовательские ключи не
// перетирают системные: коллизии уходят под префикс "data.".
func (r *Record) Flatten() map[string]any {
	out := map[string]any{
		"id":         r.ID,
		"created_at": r.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if r.CreatedBy != "" {
		out["created_by"] = r.CreatedBy
	}
	if r.UpdatedBy != "" {
		out["updated_by"] = r.UpdatedBy
	}
	for k, v := range r.Data {
		if _, clash := out[k]; clash {
			out["data."+k] = v
			continue
		}
		out[k] = v
	}
	return out
}
