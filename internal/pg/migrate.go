package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Физическое хранилище: две таблицы словаря + одна таблица записей.
// Все виртуальные таблицы тенантов живут строками dyn_records,
// дискриминатор — (tenant_id, table_name).
var ddl = []string{
	`create table if not exists dyn_tables (
	  id bigserial primary key,
	  tenant_id text not null,
	  name text not null,
	  label text not null default '',
	  is_active boolean not null default true,
	  unique (tenant_id, name)
	)`,
	`create table if not exists dyn_fields (
	  id bigserial primary key,
	  tenant_id text not null,
	  table_name text not null,
	  field_name text not null,
	  field_type text not null,
	  reference_table text,
	  is_active boolean not null default true,
	  position int not null default 0,
	  unique (tenant_id, table_name, field_name)
	)`,
	`create table if not exists dyn_records (
	  id bigserial primary key,
	  tenant_id text not null,
	  table_name text not null,
	  record_id text not null,
	  data jsonb not null default '{}'::jsonb,
	  is_deleted boolean not null default false,
	  created_at timestamp with time zone not null,
	  updated_at timestamp with time zone not null,
	  created_by text,
	  updated_by text,
	  unique (tenant_id, table_name, record_id)
	)`,
	`create index if not exists dyn_records_scope_idx
	  on dyn_records (tenant_id, table_name) where not is_deleted`,
	`create index if not exists dyn_fields_scope_idx
	  on dyn_fields (tenant_id, table_name) where is_active`,
}

// Migrate применяет идемпотентный DDL. Duplicate-object (42710) не считаем
// ошибкой — параллельный старт двух инстансов допустим.
func Migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42710" {
				log.Printf("DDL skipped (already exists): %s", strings.TrimSpace(pgErr.Message))
				continue
			}
			e := strings.ToLower(err.Error())
			if strings.Contains(e, "already exists") || strings.Contains(e, "duplicate") {
				log.Printf("DDL skipped (already exists): %v", err)
				continue
			}
			return fmt.Errorf("DDL apply failed: %w", err)
		}
	}
	return nil
}
