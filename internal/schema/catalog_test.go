package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadCatalogDir(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir, "demo.yaml", `
tenant: demo
tables:
  - name: u_owners
    label: Owners
    fields:
      - name: region
        type: string
  - name: u_assets
    fields:
      - name: status
        type: choice
      - name: owner_ref
        type: reference
        references: u_owners
`)
	writeCatalog(t, dir, "notes.txt", "не каталог, должен игнорироваться")

	cats, err := LoadCatalogDir(dir)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "demo", cats[0].Tenant)
	require.Len(t, cats[0].Tables, 2)
	assert.Equal(t, "Owners", cats[0].Tables[0].Label)
	assert.Equal(t, "u_owners", cats[0].Tables[1].Fields[1].References)
}

func TestLoadCatalogDirRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing tenant",
			body: "tables:\n  - name: u_x\n    fields:\n      - {name: a, type: string}\n",
			want: "tenant is empty",
		},
		{
			name: "bad field name",
			body: "tenant: t\ntables:\n  - name: u_x\n    fields:\n      - {name: BadName, type: string}\n",
			want: "invalid field name",
		},
		{
			name: "unknown type",
			body: "tenant: t\ntables:\n  - name: u_x\n    fields:\n      - {name: a, type: blob}\n",
			want: "unknown type",
		},
		{
			name: "reference without target",
			body: "tenant: t\ntables:\n  - name: u_x\n    fields:\n      - {name: a, type: reference}\n",
			want: "reference without target",
		},
		{
			name: "references on non-reference type",
			body: "tenant: t\ntables:\n  - name: u_x\n    fields:\n      - {name: a, type: string, references: u_y}\n",
			want: "only valid for type reference",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeCatalog(t, dir, "bad.yaml", tt.body)
			_, err := LoadCatalogDir(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidFieldName(t *testing.T) {
	assert.True(t, ValidFieldName("owner_ref"))
	assert.True(t, ValidFieldName("a1"))
	assert.False(t, ValidFieldName("OwnerRef"))
	assert.False(t, ValidFieldName("1abc"))
	assert.False(t, ValidFieldName("owner-ref"))
	assert.False(t, ValidFieldName("owner.ref"))
	assert.False(t, ValidFieldName(""))
}
