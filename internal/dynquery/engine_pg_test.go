package dynquery_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"platforma/internal/dynquery"
	"platforma/internal/pg"
	"platforma/internal/records"
	"platforma/internal/schema"
)

// Интеграционный прогон движка против настоящего Postgres.
// go test -short его пропускает.
func TestEnginePostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("postgres integration test")
	}

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("platforma"),
		tcpostgres.WithUsername("platforma"),
		tcpostgres.WithPassword("platforma"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := pg.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, pg.Migrate(db))

	dict := schema.NewDictionary(db)
	require.NoError(t, dict.Seed(ctx, []schema.Catalog{
		{
			Tenant: "t1",
			Tables: []schema.CatalogTable{
				{
					Name: "u_owners",
					Fields: []schema.CatalogField{
						{Name: "name", Type: "string"},
						{Name: "region", Type: "string"},
						{Name: "headcount", Type: "integer"},
					},
				},
				{
					Name: "u_assets",
					Fields: []schema.CatalogField{
						{Name: "title", Type: "string"},
						{Name: "status", Type: "choice"},
						{Name: "criticality", Type: "integer"},
						{Name: "score", Type: "decimal"},
						{Name: "in_scope", Type: "boolean"},
						{Name: "review_date", Type: "date"},
						{Name: "owner_ref", Type: "reference", References: "u_owners"},
					},
				},
			},
		},
		{
			Tenant: "t2",
			Tables: []schema.CatalogTable{
				{
					Name: "u_assets",
					Fields: []schema.CatalogField{
						{Name: "status", Type: "choice"},
					},
				},
			},
		},
	}))

	insert := func(tenant, table, id string, data map[string]any) {
		t.Helper()
		doc, err := json.Marshal(data)
		require.NoError(t, err)
		now := time.Now().UTC()
		_, err = db.ExecContext(ctx,
			`insert into dyn_records
			   (tenant_id, table_name, record_id, data, is_deleted, created_at, updated_at)
			 values ($1, $2, $3, $4, false, $5, $5)`,
			tenant, table, id, doc, now)
		require.NoError(t, err)
	}

	insert("t1", "u_owners", "o1", map[string]any{"name": "Acme", "region": "EU", "headcount": 12})
	insert("t1", "u_owners", "o2", map[string]any{"name": "Globex", "region": "US", "headcount": 3})
	insert("t1", "u_assets", "a1", map[string]any{
		"title": "edge router", "status": "open", "criticality": 3,
		"score": 1.5, "in_scope": true, "review_date": "2025-02-01", "owner_ref": "o1",
	})
	insert("t1", "u_assets", "a2", map[string]any{
		"title": "vpn gateway", "status": "closed", "criticality": 7,
		"score": 4.2, "review_date": "2025-06-01", "owner_ref": "o2",
	})
	insert("t1", "u_assets", "a3", map[string]any{
		"title": "legacy nas", "status": "open", "criticality": 5,
	})
	insert("t2", "u_assets", "a1", map[string]any{"status": "spooky"})

	eng := dynquery.NewEngine(db, dict)

	ids := func(res *dynquery.QueryResult) []string {
		out := make([]string, 0, len(res.Items))
		for _, it := range res.Items {
			out = append(out, it["id"].(string))
		}
		return out
	}

	t.Run("no filter returns the whole tenant/table scope", func(t *testing.T) {
		res, err := eng.Query(ctx, "t1", "u_assets", dynquery.QueryOptions{})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Total)
		assert.Len(t, res.Items, 3)
	})

	t.Run("empty filter group behaves like no filter", func(t *testing.T) {
		res, err := eng.Query(ctx, "t1", "u_assets", dynquery.QueryOptions{Filter: `{}`})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Total)
	})

	t.Run("unknown table", func(t *testing.T) {
		_, err := eng.Query(ctx, "t1", "u_nothing", dynquery.QueryOptions{})
		assert.ErrorIs(t, err, schema.ErrTableNotFound)
	})

	t.Run("dot-walk equals joins the referenced table once", func(t *testing.T) {
		res, err := eng.Query(ctx, "t1", "u_assets", dynquery.QueryOptions{
			Filter: `{"field":"owner_ref.region","operator":"equals","value":"EU"}`,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a1"}, ids(res))
	})

	t.Run("is_empty on dot-walked field matches a missed join", func(t *testing.T) {
		res, err := eng.Query(ctx, "t1", "u_assets", dynquery.QueryOptions{
			Filter: `{"field":"owner_ref.region","operator":"is_empty"}`,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a3"}, ids(res))
	})

	t.Run("numeric comparison is not lexicographic", func(t *testing.T) {
		// "7" > "10" по тексту, но не по числу
		n, err := eng.Count(ctx, "t1", "u_assets",
			`{"field":"criticality","operator":"gt","value":10}`, "")
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		n, err = eng.Count(ctx, "t1", "u_assets",
			`{"field":"criticality","operator":"gte","value":5}`, "")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("date after", func(t *testing.T) {
		res, err := eng.Query(ctx, "t1", "u_assets", dynquery.QueryOptions{
			Filter: `{"field":"review_date","operator":"after","value":"2025-03-01"}`,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a2"}, ids(res))
	})

	t.Run("boolean equals", func(t *testing.T) {
		res, err := eng.Query(ctx, "t1", "u_assets", dynquery.QueryOptions{
			Filter: `{"field":"in_scope","operator":"equals","value":"1"}`,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a1"}, ids(res))
	})

	t.Run("in with scalar fails before any sql runs", func(t *testing.T) {
		_, err := eng.Query(ctx, "t1", "u_assets", dynquery.QueryOptions{
			Filter: `{"field":"owner_ref.region","operator":"in","value":"EU"}`,
		})
		var ve *dynquery.ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("in with empty array matches nothing", func(t *testing.T) {
		n, err := eng.Count(ctx, "t1", "u_assets",
			`{"field":"status","operator":"in","value":[]}`, "")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("unknown field rejects the whole query", func(t *testing.T) {
		_, err := eng.Query(ctx, "t1", "u_assets", dynquery.QueryOptions{
			Filter: `{"field":"nonexistent","operator":"equals","value":"x"}`,
		})
		var ve *dynquery.ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("partially invalid sort applies only the valid token", func(t *testing.T) {
		res, err := eng.Query(ctx, "t1", "u_assets", dynquery.QueryOptions{
			Sort: "bogus:ASC,status:DESC",
		})
		require.NoError(t, err)
		require.Len(t, res.Items, 3)
		assert.Equal(t, "open", res.Items[0]["status"])
		assert.Equal(t, "closed", res.Items[2]["status"])
	})

	t.Run("q searches the serialized document", func(t *testing.T) {
		res, err := eng.Query(ctx, "t1", "u_assets", dynquery.QueryOptions{Q: "ROUTER"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a1"}, ids(res))
	})

	t.Run("pagination computes total before the window", func(t *testing.T) {
		res, err := eng.Query(ctx, "t1", "u_assets", dynquery.QueryOptions{
			Sort: "id:asc", Page: 2, PageSize: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Total)
		assert.Equal(t, 2, res.TotalPages)
		assert.Equal(t, []string{"a3"}, ids(res))
	})

	t.Run("tenants never see each other", func(t *testing.T) {
		res, err := eng.Query(ctx, "t2", "u_assets", dynquery.QueryOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Total)
		assert.Equal(t, "spooky", res.Items[0]["status"])

		res, err = eng.Query(ctx, "t1", "u_assets", dynquery.QueryOptions{
			Filter: `{"field":"status","operator":"equals","value":"spooky"}`,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Total)
	})

	t.Run("dot-walk projector", func(t *testing.T) {
		rec, err := eng.DotWalk(ctx, "t1", "u_assets", "a1", "owner_ref", nil)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "o1", rec["id"])
		assert.Equal(t, "EU", rec["region"])
		assert.Equal(t, "Acme", rec["name"])

		// проекция: мусорное имя молча отбрасывается, id остаётся
		rec, err = eng.DotWalk(ctx, "t1", "u_assets", "a1", "owner_ref", []string{"region", "Bogus!"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": "o1", "region": "EU"}, rec)

		// незаполненная ссылка — nil без ошибки
		rec, err = eng.DotWalk(ctx, "t1", "u_assets", "a3", "owner_ref", nil)
		require.NoError(t, err)
		assert.Nil(t, rec)

		// не-reference поле — ошибка валидации
		_, err = eng.DotWalk(ctx, "t1", "u_assets", "a1", "status", nil)
		var ve *dynquery.ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("write path lifecycle", func(t *testing.T) {
		store := records.NewStore(db, dict)

		created, err := store.Create(ctx, "t1", "u_assets",
			map[string]any{"title": "temp box", "status": "draft"}, "bob")
		require.NoError(t, err)
		id := created["id"].(string)
		require.NotEmpty(t, id)
		assert.Equal(t, "bob", created["created_by"])

		updated, err := store.Update(ctx, "t1", "u_assets", id,
			map[string]any{"status": "open"}, "carol")
		require.NoError(t, err)
		assert.Equal(t, "open", updated["status"])
		assert.Equal(t, "temp box", updated["title"])

		require.NoError(t, store.SoftDelete(ctx, "t1", "u_assets", id, "carol"))
		got, err := eng.Get(ctx, "t1", "u_assets", id)
		require.NoError(t, err)
		assert.Nil(t, got)

		require.NoError(t, store.Restore(ctx, "t1", "u_assets", id, "carol"))
		got, err = eng.Get(ctx, "t1", "u_assets", id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "open", got["status"])

		// повторное удаление несуществующего — not found
		require.NoError(t, store.SoftDelete(ctx, "t1", "u_assets", id, "carol"))
		err = store.SoftDelete(ctx, "t1", "u_assets", id, "carol")
		assert.ErrorIs(t, err, records.ErrRecordNotFound)
	})
}
