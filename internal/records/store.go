package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"platforma/internal/dynquery"
	"platforma/internal/schema"
)

var ErrRecordNotFound = errors.New("record not found")

// Store — write-path динамических записей. Payload не валидируется против
// словаря (этим занимается форма Platform Builder'а на клиенте); здесь
// гарантируем только тенантную изоляцию и мягкое удаление.
type Store struct {
	DB   *sql.DB
	Dict *schema.Dictionary

	mu      sync.Mutex
	entropy io.Reader
}

func NewStore(db *sql.DB, dict *schema.Dictionary) *Store {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Store{DB: db, Dict: dict, entropy: ulid.Monotonic(src, 0)}
}

func (s *Store) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// Create создаёт запись и возвращает её в плоском виде.
func (s *Store) Create(ctx context.Context, tenantID, table string, data map[string]any, actor string) (map[string]any, error) {
	if _, err := s.Dict.Table(ctx, tenantID, table); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	doc, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("records: marshal: %w", err)
	}

	id := s.newID()
	now := time.Now().UTC()
	if _, err := s.DB.ExecContext(ctx,
		`insert into dyn_records
		   (tenant_id, table_name, record_id, data, is_deleted,
		    created_at, updated_at, created_by, updated_by)
		 values ($1, $2, $3, $4, false, $5, $5, $6, $6)`,
		tenantID, table, id, doc, now, actor); err != nil {
		return nil, fmt.Errorf("records: insert: %w", err)
	}

	rec := &dynquery.Record{
		ID: id, CreatedAt: now, UpdatedAt: now,
		CreatedBy: actor, UpdatedBy: actor, Data: data,
	}
	return rec.Flatten(), nil
}

// Update сливает patch в документ записи (merge по ключам, как PATCH).
func (s *Store) Update(ctx context.Context, tenantID, table, recordID string, patch map[string]any, actor string) (map[string]any, error) {
	if _, err := s.Dict.Table(ctx, tenantID, table); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("records: begin: %w", err)
	}
	defer tx.Rollback()

	var doc []byte
	var rec dynquery.Record
	err = tx.QueryRowContext(ctx,
		`select record_id, data, created_at, coalesce(created_by, '')
		   from dyn_records
		  where tenant_id = $1 and table_name = $2
		    and record_id = $3 and is_deleted = false
		  for update`,
		tenantID, table, recordID).
		Scan(&rec.ID, &doc, &rec.CreatedAt, &rec.CreatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("records: load: %w", err)
	}

	merged := map[string]any{}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &merged); err != nil {
			return nil, fmt.Errorf("records: record %s: %w", recordID, err)
		}
	}
	for k, v := range patch {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("records: marshal: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`update dyn_records
		    set data = $4, updated_at = $5, updated_by = $6
		  where tenant_id = $1 and table_name = $2 and record_id = $3`,
		tenantID, table, recordID, out, now, actor); err != nil {
		return nil, fmt.Errorf("records: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("records: commit: %w", err)
	}

	rec.UpdatedAt = now
	rec.UpdatedBy = actor
	rec.Data = merged
	return rec.Flatten(), nil
}

// SoftDelete помечает запись удалённой; сами данные остаются.
func (s *Store) SoftDelete(ctx context.Context, tenantID, table, recordID, actor string) error {
	return s.setDeleted(ctx, tenantID, table, recordID, actor, true)
}

// Restore снимает пометку удаления.
func (s *Store) Restore(ctx context.Context, tenantID, table, recordID, actor string) error {
	return s.setDeleted(ctx, tenantID, table, recordID, actor, false)
}

func (s *Store) setDeleted(ctx context.Context, tenantID, table, recordID, actor string, deleted bool) error {
	if _, err := s.Dict.Table(ctx, tenantID, table); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx,
		`update dyn_records
		    set is_deleted = $4, updated_at = $5, updated_by = $6
		  where tenant_id = $1 and table_name = $2 and record_id = $3
		    and is_deleted = $7`,
		tenantID, table, recordID, deleted, time.Now().UTC(), actor, !deleted)
	if err != nil {
		return fmt.Errorf("records: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("records: delete: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
