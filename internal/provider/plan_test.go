package provider

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keyringdb/internal/keyring"
	"github.com/roach88/keyringdb/internal/queryir"
	"github.com/roach88/keyringdb/internal/querysql"
	"github.com/roach88/keyringdb/internal/route"
)

// renderStatement compiles stmt and prints the SQL followed by one line
// per bound parameter.
func renderStatement(t *testing.T, stmt queryir.Statement) []byte {
	t.Helper()

	query, params, err := querysql.NewSQLCompiler().Compile(stmt)
	require.NoError(t, err)

	var b strings.Builder
	b.WriteString(query)
	b.WriteString("\n")
	for i, p := range params {
		fmt.Fprintf(&b, "$%d %T %v\n", i+1, p, p)
	}
	return []byte(b.String())
}

func mustPlan(t *testing.T, address string) plan {
	t.Helper()
	pl, err := planFor(route.MustResolve(address))
	require.NoError(t, err)
	return pl
}

func TestPlanGolden(t *testing.T) {
	p := New(nil)

	cases := []struct {
		name string
		stmt func(t *testing.T) queryir.Statement
	}{
		{"list_public", func(t *testing.T) queryir.Statement {
			return mustPlan(t, "keyrings/public").read
		}},
		{"get_by_row_secret", func(t *testing.T) queryir.Statement {
			return mustPlan(t, "keyrings/secret/7").read
		}},
		{"get_by_master_key_hex", func(t *testing.T) queryir.Statement {
			return mustPlan(t, "keyrings/public/by-master-key/0x2a").read
		}},
		{"get_by_key_id", func(t *testing.T) queryir.Statement {
			return mustPlan(t, "keyrings/public/by-key/16").read
		}},
		{"get_by_emails", func(t *testing.T) queryir.Statement {
			return mustPlan(t, "keyrings/public/by-emails/a@example.com,, b@example.com").read
		}},
		{"list_userids_secret", func(t *testing.T) queryir.Statement {
			return mustPlan(t, "keyrings/secret/3/userids").read
		}},
		{"query_keys_with_options", func(t *testing.T) queryir.Statement {
			sel, _, err := mustPlan(t, "keyrings/public/3/keys").selectFor(QueryOptions{
				Columns: []string{keyring.ColKeyID, keyring.ColRank},
				Where:   queryir.Compare{Col: queryir.Col{Name: keyring.ColRank}, Op: queryir.OpGt, Value: keyring.Int(0)},
				OrderBy: []queryir.Order{{Col: queryir.Col{Name: keyring.ColCreatedAt}, Desc: true}},
				Limit:   5,
			})
			require.NoError(t, err)
			return sel
		}},
		{"delete_key", func(t *testing.T) queryir.Statement {
			pl := mustPlan(t, "keyrings/public/3/keys/9")
			return queryir.Delete{Table: pl.table, Where: pl.scope}
		}},
		{"delete_consumer_by_package", func(t *testing.T) queryir.Statement {
			pl := mustPlan(t, "consumers/by-package/org.example.app")
			return queryir.Delete{Table: pl.table, Where: pl.scope}
		}},
		{"update_ring", func(t *testing.T) queryir.Statement {
			pl := mustPlan(t, "keyrings/public/5")
			set, err := p.preparePayload(pl, keyring.Values{
				keyring.ColMasterKeyID: keyring.Int(42),
				"type":                 keyring.Int(1),
			}, true)
			require.NoError(t, err)
			return queryir.Update{Table: pl.table, Set: set, Where: pl.scope}
		}},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g.Assert(t, tc.name, renderStatement(t, tc.stmt(t)))
		})
	}
}

func TestPlanRingColumns(t *testing.T) {
	for _, addr := range []string{
		"keyrings/public",
		"keyrings/public/1",
		"keyrings/secret/by-master-key/1",
		"keyrings/secret/by-key/1",
		"keyrings/public/by-emails/a@b.c",
	} {
		pl := mustPlan(t, addr)
		assert.Equal(t, []string{"id", "master_key_id", "primary_user_id"}, pl.columns, addr)
		assert.Equal(t, keyring.TableKeyRings, pl.table, addr)
	}
}

func TestPlanScopeOnlyForItems(t *testing.T) {
	assert.Nil(t, mustPlan(t, "keyrings/public").scope)
	assert.Nil(t, mustPlan(t, "keyrings/public/1/keys").scope)
	assert.Nil(t, mustPlan(t, "consumers").scope)

	assert.NotNil(t, mustPlan(t, "keyrings/public/1").scope)
	assert.NotNil(t, mustPlan(t, "keyrings/public/1/userids/2").scope)
	assert.NotNil(t, mustPlan(t, "consumers/4").scope)
}

func TestPlanBlobUnsupported(t *testing.T) {
	_, err := planFor(route.MustResolve("data/photo.png"))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSelectForRejectsUnknownColumns(t *testing.T) {
	pl := mustPlan(t, "keyrings/public")

	_, _, err := pl.selectFor(QueryOptions{Columns: []string{"key_data"}})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, _, err = pl.selectFor(QueryOptions{Where: queryir.Equals{Col: queryir.Col{Name: "nope"}, Value: keyring.Int(1)}})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, _, err = pl.selectFor(QueryOptions{Where: queryir.Equals{Col: queryir.C("keys", "rank"), Value: keyring.Int(1)}})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, _, err = pl.selectFor(QueryOptions{OrderBy: []queryir.Order{{Col: queryir.Col{Name: "rank"}}}})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, _, err = pl.selectFor(QueryOptions{Limit: -1})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestSplitEmails(t *testing.T) {
	assert.Equal(t, []string{"a@x.org", "b@y.org"}, splitEmails(" a@x.org ,,b@y.org,"))
	assert.Empty(t, splitEmails(" , "))
	assert.Equal(t, []string{"\u00e9@x.org"}, splitEmails("e\u0301@x.org"))
}

func TestKeyIDValue(t *testing.T) {
	assert.Equal(t, keyring.Int(42), keyIDValue("42"))
	assert.Equal(t, keyring.Int(42), keyIDValue("0x2a"))
	assert.Equal(t, keyring.Int(-1), keyIDValue("18446744073709551615"))
	assert.Equal(t, keyring.String("zz"), keyIDValue("zz"))
}
