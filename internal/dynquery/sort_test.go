package dynquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSort(t *testing.T) {
	main := assetFields()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "empty string falls back to default order",
			raw:  "",
			want: "r.created_at desc, r.id desc",
		},
		{
			name: "direction defaults to desc",
			raw:  "status",
			want: "r.data->>'status' desc, r.id desc",
		},
		{
			name: "invalid token is skipped, valid one applies",
			raw:  "bogus:ASC,status:DESC",
			want: "r.data->>'status' desc, r.id desc",
		},
		{
			name: "all tokens invalid falls back to default",
			raw:  "bogus:ASC,Another:desc",
			want: "r.created_at desc, r.id desc",
		},
		{
			name: "system keys bypass the dictionary",
			raw:  "created_at:asc,id:asc",
			want: "r.created_at asc, r.record_id asc, r.id desc",
		},
		{
			name: "multi-key order is preserved",
			raw:  "status:asc,criticality:desc",
			want: "r.data->>'status' asc, r.data->>'criticality' desc, r.id desc",
		},
		{
			name: "garbage direction means desc",
			raw:  "status:sideways",
			want: "r.data->>'status' desc, r.id desc",
		},
		{
			name: "dot-walk sort keys are not supported",
			raw:  "owner_ref.region:asc",
			want: "r.created_at desc, r.id desc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveSort(tt.raw, main))
		})
	}
}
