package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrTableNotFound — таблица отсутствует или неактивна для тенанта.
// Отличаем от ошибок валидации: это «нет такой таблицы», а не «плохой запрос».
var ErrTableNotFound = errors.New("table not found")

// Dictionary — доступ к словарю полей. Движок запросов пользуется им
// строго на чтение; мутации словаря живут в schema-админке (вне репо),
// сюда входит только идемпотентный Seed из каталогов.
type Dictionary struct {
	DB *sql.DB
}

func NewDictionary(db *sql.DB) *Dictionary { return &Dictionary{DB: db} }

// Table возвращает активную таблицу тенанта либо ErrTableNotFound.
func (d *Dictionary) Table(ctx context.Context, tenantID, name string) (*TableDef, error) {
	t := &TableDef{}
	err := d.DB.QueryRowContext(ctx,
		`select tenant_id, name, label, is_active
		   from dyn_tables
		  where tenant_id = $1 and name = $2 and is_active = true`,
		tenantID, name).Scan(&t.TenantID, &t.Name, &t.Label, &t.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dictionary: table %q: %w", name, err)
	}
	return t, nil
}

// Tables — все активные таблицы тенанта (для меты).
func (d *Dictionary) Tables(ctx context.Context, tenantID string) ([]TableDef, error) {
	rows, err := d.DB.QueryContext(ctx,
		`select tenant_id, name, label, is_active
		   from dyn_tables
		  where tenant_id = $1 and is_active = true
		  order by name`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("dictionary: tables: %w", err)
	}
	defer rows.Close()

	var out []TableDef
	for rows.Next() {
		var t TableDef
		if err := rows.Scan(&t.TenantID, &t.Name, &t.Label, &t.IsActive); err != nil {
			return nil, fmt.Errorf("dictionary: tables: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ActiveFields — активные поля таблицы в стабильном порядке отображения.
// Сама таблица обязана существовать и быть активной, иначе ErrTableNotFound.
func (d *Dictionary) ActiveFields(ctx context.Context, tenantID, table string) ([]FieldDef, error) {
	if _, err := d.Table(ctx, tenantID, table); err != nil {
		return nil, err
	}
	rows, err := d.DB.QueryContext(ctx,
		`select tenant_id, table_name, field_name, field_type,
		        coalesce(reference_table, ''), is_active, position
		   from dyn_fields
		  where tenant_id = $1 and table_name = $2 and is_active = true
		  order by position, field_name`,
		tenantID, table)
	if err != nil {
		return nil, fmt.Errorf("dictionary: fields of %q: %w", table, err)
	}
	defer rows.Close()

	var out []FieldDef
	for rows.Next() {
		var f FieldDef
		if err := rows.Scan(&f.TenantID, &f.TableName, &f.Name, &f.Type,
			&f.ReferenceTable, &f.IsActive, &f.Position); err != nil {
			return nil, fmt.Errorf("dictionary: fields of %q: %w", table, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
