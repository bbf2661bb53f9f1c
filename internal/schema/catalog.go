package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog — декларация словаря одного тенанта (seed-файл).
// Формат нарочно плоский: tenant → таблицы → поля.
type Catalog struct {
	Tenant string         `yaml:"tenant"`
	Tables []CatalogTable `yaml:"tables"`
}

type CatalogTable struct {
	Name   string         `yaml:"name"`
	Label  string         `yaml:"label,omitempty"`
	Fields []CatalogField `yaml:"fields"`
}

type CatalogField struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	References string `yaml:"references,omitempty"`
}

// LoadCatalogDir читает все *.yaml каталоги из папки.
// Каталог — админский вход, поэтому тут ошибки строгие, без silent-skip.
func LoadCatalogDir(dir string) ([]Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Catalog
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var cat Catalog
		if err := yaml.Unmarshal(data, &cat); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", name, err)
		}
		if err := cat.validate(); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", name, err)
		}
		out = append(out, cat)
	}
	return out, nil
}

func (c *Catalog) validate() error {
	if strings.TrimSpace(c.Tenant) == "" {
		return fmt.Errorf("tenant is empty")
	}
	for _, t := range c.Tables {
		if !ValidFieldName(t.Name) {
			return fmt.Errorf("table %q: invalid name", t.Name)
		}
		for _, f := range t.Fields {
			if !ValidFieldName(f.Name) {
				return fmt.Errorf("table %q: invalid field name %q", t.Name, f.Name)
			}
			ft := FieldType(strings.ToLower(strings.TrimSpace(f.Type)))
			if !KnownType(ft) {
				return fmt.Errorf("table %q: field %q: unknown type %q", t.Name, f.Name, f.Type)
			}
			if ft == TypeReference && strings.TrimSpace(f.References) == "" {
				return fmt.Errorf("table %q: field %q: reference without target table", t.Name, f.Name)
			}
			if ft != TypeReference && strings.TrimSpace(f.References) != "" {
				return fmt.Errorf("table %q: field %q: references only valid for type reference", t.Name, f.Name)
			}
		}
	}
	return nil
}

// Seed идемпотентно вливает каталоги в словарь. Существующие записи
// обновляются, активность восстанавливается; чужие таблицы тенанта
// не трогаем (удаление — дело админки).
func (d *Dictionary) Seed(ctx context.Context, cats []Catalog) error {
	for _, cat := range cats {
		for _, t := range cat.Tables {
			if _, err := d.DB.ExecContext(ctx,
				`insert into dyn_tables (tenant_id, name, label, is_active)
				 values ($1, $2, $3, true)
				 on conflict (tenant_id, name)
				 do update set label = excluded.label, is_active = true`,
				cat.Tenant, t.Name, t.Label); err != nil {
				return fmt.Errorf("seed table %s/%s: %w", cat.Tenant, t.Name, err)
			}
			for i, f := range t.Fields {
				var ref any
				if f.References != "" {
					ref = f.References
				}
				if _, err := d.DB.ExecContext(ctx,
					`insert into dyn_fields
					   (tenant_id, table_name, field_name, field_type, reference_table, is_active, position)
					 values ($1, $2, $3, $4, $5, true, $6)
					 on conflict (tenant_id, table_name, field_name)
					 do update set field_type = excluded.field_type,
					               reference_table = excluded.reference_table,
					               is_active = true,
					               position = excluded.position`,
					cat.Tenant, t.Name, f.Name,
					strings.ToLower(strings.TrimSpace(f.Type)), ref, i); err != nil {
					return fmt.Errorf("seed field %s/%s.%s: %w", cat.Tenant, t.Name, f.Name, err)
				}
			}
		}
	}
	return nil
}
