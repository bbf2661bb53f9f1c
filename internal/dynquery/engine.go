package dynquery

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"platforma/internal/schema"
)

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

// Engine — движок запросов по виртуальным таблицам. Stateless: реестр
// join'ов и счётчик параметров создаются заново на каждый вызов.
type Engine struct {
	DB   *sql.DB
	Dict *schema.Dictionary
}

func NewEngine(db *sql.DB, dict *schema.Dictionary) *Engine {
	return &Engine{DB: db, Dict: dict}
}

type QueryOptions struct {
	Q        string // substring-поиск по всему документу
	Filter   string // JSON-дерево фильтра (сырой текст)
	Sort     string // "field:dir,field:dir"
	Page     int
	PageSize int
}

type QueryResult struct {
	Items      []map[string]any `json:"items"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

// lookupFor — словарный lookup с кэшем на один запрос: каждая таблица
// читается из словаря не больше одного раза за компиляцию.
func (e *Engine) lookupFor(ctx context.Context, tenantID string) FieldLookup {
	cache := map[string]map[string]schema.FieldDef{}
	return func(table string) (map[string]schema.FieldDef, error) {
		if m, ok := cache[table]; ok {
			return m, nil
		}
		defs, err := e.Dict.ActiveFields(ctx, tenantID, table)
		if err != nil {
			return nil, err
		}
		m := make(map[string]schema.FieldDef, len(defs))
		for _, f := range defs {
			m[f.Name] = f
		}
		cache[table] = m
		return m, nil
	}
}

type compiled struct {
	joins string
	where string
	args  []any
}

// compile собирает WHERE + JOIN'ы + параметры для пары (filter, q).
// Любая ошибка валидации отклоняет запрос до обращения к базе.
func (e *Engine) compile(ctx context.Context, tenantID, table, filter, q string) (*compiled, map[string]schema.FieldDef, error) {
	lookup := e.lookupFor(ctx, tenantID)
	main, err := lookup(table)
	if err != nil {
		return nil, nil, err
	}

	c := newCompiler(main, lookup)
	conds := []string{
		"r.tenant_id = " + c.param(tenantID),
		"r.table_name = " + c.param(table),
		"r.is_deleted = false",
	}

	if strings.TrimSpace(filter) != "" {
		g, err := ParseFilter(filter)
		if err != nil {
			return nil, nil, err
		}
		frag, err := c.compileGroup(g)
		if err != nil {
			return nil, nil, err
		}
		if frag != "" {
			conds = append(conds, frag)
		}
	}
	if s := strings.TrimSpace(q); s != "" {
		// дешёвый fallback-поиск по сериализованному документу
		conds = append(conds, "r.data::text ilike "+c.param("%"+likeEscape(s)+"%"))
	}

	return &compiled{
		joins: c.joinSQL(),
		where: strings.Join(conds, " and "),
		args:  c.args,
	}, main, nil
}

const recordCols = "r.record_id, r.data, r.created_at, r.updated_at, " +
	"coalesce(r.created_by, ''), coalesce(r.updated_by, '')"

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var rec Record
	var doc []byte
	if err := row.Scan(&rec.ID, &doc, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.CreatedBy, &rec.UpdatedBy); err != nil {
		return nil, err
	}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &rec.Data); err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

// Query — основная точка входа: фильтр, поиск, сортировка, пагинация.
// Total считается до применения limit/offset.
func (e *Engine) Query(ctx context.Context, tenantID, table string, opts QueryOptions) (*QueryResult, error) {
	cp, main, err := e.compile(ctx, tenantID, table, opts.Filter, opts.Q)
	if err != nil {
		return nil, err
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	var total int
	countSQL := "select count(*) from dyn_records r" + cp.joins + " where " + cp.where
	if err := e.DB.QueryRowContext(ctx, countSQL, cp.args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("dynquery: count: %w", err)
	}

	selSQL := fmt.Sprintf(
		"select %s from dyn_records r%s where %s order by %s limit %d offset %d",
		recordCols, cp.joins, cp.where, resolveSort(opts.Sort, main),
		size, (page-1)*size)

	rows, err := e.DB.QueryContext(ctx, selSQL, cp.args...)
	if err != nil {
		return nil, fmt.Errorf("dynquery: query: %w", err)
	}
	defer rows.Close()

	items := make([]map[string]any, 0, size)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("dynquery: %w", err)
		}
		items = append(items, rec.Flatten())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dynquery: query: %w", err)
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + size - 1) / size
	}
	return &QueryResult{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
	}, nil
}

// Count — те же фильтр и поиск, только счётчик.
func (e *Engine) Count(ctx context.Context, tenantID, table, filter, q string) (int, error) {
	cp, _, err := e.compile(ctx, tenantID, table, filter, q)
	if err != nil {
		return 0, err
	}
	var total int
	countSQL := "select count(*) from dyn_records r" + cp.joins + " where " + cp.where
	if err := e.DB.QueryRowContext(ctx, countSQL, cp.args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("dynquery: count: %w", err)
	}
	return total, nil
}

// Get возвращает одну запись (nil — не найдена). Таблица проверяется по
// словарю, чтобы «нет таблицы» и «нет записи» различались.
func (e *Engine) Get(ctx context.Context, tenantID, table, recordID string) (map[string]any, error) {
	if _, err := e.Dict.Table(ctx, tenantID, table); err != nil {
		return nil, err
	}
	rec, err := e.loadRecord(ctx, tenantID, table, recordID)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.Flatten(), nil
}

// DotWalk — проектор одного хопа: по записи и reference-полю достаёт поля
// записи, на которую указывает ссылка. Незаполненная ссылка и отсутствующая
// цель — валидные состояния, возвращаем nil без ошибки. Невалидные имена в
// targetFields молча отбрасываются (проекция — best-effort вход).
func (e *Engine) DotWalk(ctx context.Context, tenantID, table, recordID, refField string, targetFields []string) (map[string]any, error) {
	main, err := e.lookupFor(ctx, tenantID)(table)
	if err != nil {
		return nil, err
	}
	if !schema.ValidFieldName(refField) {
		return nil, badRequestf("invalid field name: %s", refField)
	}
	ref, ok := main[refField]
	if !ok {
		return nil, badRequestf("unknown field: %s", refField)
	}
	if ref.Type != schema.TypeReference || ref.ReferenceTable == "" {
		return nil, badRequestf("field %s is not a reference", refField)
	}

	src, err := e.loadRecord(ctx, tenantID, table, recordID)
	if err != nil || src == nil {
		return nil, err
	}
	refID, _ := src.Data[refField].(string)
	if refID == "" {
		return nil, nil
	}

	tgt, err := e.loadRecord(ctx, tenantID, ref.ReferenceTable, refID)
	if err != nil || tgt == nil {
		return nil, err
	}

	if len(targetFields) == 0 {
		return tgt.Flatten(), nil
	}
	out := map[string]any{"id": tgt.ID}
	for _, name := range targetFields {
		name = strings.TrimSpace(name)
		if !schema.ValidFieldName(name) {
			continue
		}
		if v, ok := tgt.Data[name]; ok {
			out[name] = v
		}
	}
	return out, nil
}

func (e *Engine) loadRecord(ctx context.Context, tenantID, table, recordID string) (*Record, error) {
	row := e.DB.QueryRowContext(ctx,
		"select "+recordCols+` from dyn_records r
		  where r.tenant_id = $1 and r.table_name = $2
		    and r.record_id = $3 and r.is_deleted = false`,
		tenantID, table, recordID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dynquery: load: %w", err)
	}
	return rec, nil
}
