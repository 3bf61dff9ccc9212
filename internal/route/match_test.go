package route

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keyringdb/internal/keyring"
)

func TestResolve_Grammar(t *testing.T) {
	tests := []struct {
		address string
		code    Code
		kind    keyring.Kind
		params  Params
	}{
		{"keyrings/public", List, keyring.KindPublic, Params{{ParamKind, "public"}}},
		{"keyrings/secret", List, keyring.KindSecret, Params{{ParamKind, "secret"}}},
		{"keyrings/public/12", GetByRow, keyring.KindPublic, Params{{ParamKind, "public"}, {ParamRow, "12"}}},
		{
			"keyrings/secret/by-master-key/-3819410108757049344", GetByMasterKey, keyring.KindSecret,
			Params{{ParamKind, "secret"}, {ParamMasterKeyID, "-3819410108757049344"}},
		},
		{
			"keyrings/public/by-key/0xDEADBEEF", GetByKeyID, keyring.KindPublic,
			Params{{ParamKind, "public"}, {ParamKeyID, "0xDEADBEEF"}},
		},
		{
			"keyrings/public/by-emails/a@x.com, b@y.com", GetByEmails, keyring.KindPublic,
			Params{{ParamKind, "public"}, {ParamEmails, "a@x.com, b@y.com"}},
		},
		{"keyrings/public/7/keys", ListKeys, keyring.KindPublic, Params{{ParamKind, "public"}, {ParamRow, "7"}}},
		{
			"keyrings/secret/7/keys/9", GetKey, keyring.KindSecret,
			Params{{ParamKind, "secret"}, {ParamRow, "7"}, {ParamChild, "9"}},
		},
		{"keyrings/public/7/userids", ListUserIDs, keyring.KindPublic, Params{{ParamKind, "public"}, {ParamRow, "7"}}},
		{
			"keyrings/public/7/userids/0", GetUserID, keyring.KindPublic,
			Params{{ParamKind, "public"}, {ParamRow, "7"}, {ParamChild, "0"}},
		},
		{"data/export.asc", OpenBlob, 0, Params{{ParamName, "export.asc"}}},
		{"consumers", ListConsumers, 0, nil},
		{"consumers/4", GetConsumer, 0, Params{{ParamRow, "4"}}},
		{
			"consumers/by-package/org.example.mail", GetConsumerByPackage, 0,
			Params{{ParamPackage, "org.example.mail"}},
		},
		{"/keyrings/public/12", GetByRow, keyring.KindPublic, Params{{ParamKind, "public"}, {ParamRow, "12"}}},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			m, err := Resolve(tt.address)
			require.NoError(t, err)
			assert.Equal(t, tt.code, m.Code)
			assert.Equal(t, tt.params, m.Params)
			assert.Equal(t, strings.TrimPrefix(tt.address, "/"), m.Address)
			if tt.code.Kinded() {
				assert.Equal(t, tt.kind, m.Kind)
			}
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	addresses := []string{
		"",
		"/",
		"keyrings",
		"keyrings/private",
		"keyrings/PUBLIC",
		"keyrings/public/",
		"keyrings//12",
		"keyrings/public/abc",
		"keyrings/public/-1",
		"keyrings/public/99999999999999999999",
		"keyrings/public/by-key",
		"keyrings/public/by-emails",
		"keyrings/public/12/keys/x",
		"keyrings/public/12/subkeys",
		"keyrings/public/12/keys/3/extra",
		"data",
		"data/a/b",
		"consumers/by-package",
		"consumers/x",
		"//keyrings/public",
	}

	for _, address := range addresses {
		t.Run(address, func(t *testing.T) {
			_, err := Resolve(address)
			assert.ErrorIs(t, err, ErrRouteNotFound)
		})
	}
}

func TestResolve_LiteralBeatsWildcard(t *testing.T) {
	// "by-package" is a literal segment under consumers and must never be
	// captured as a row id or a wildcard.
	m, err := Resolve("consumers/by-package/by-package")
	require.NoError(t, err)
	assert.Equal(t, GetConsumerByPackage, m.Code)
	v, _ := m.Params.Get(ParamPackage)
	assert.Equal(t, "by-package", v)
}

func TestResolve_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m, err := Resolve("keyrings/secret/5/keys/6")
				if assert.NoError(t, err) {
					assert.Equal(t, GetKey, m.Code)
				}
			}
		}()
	}
	wg.Wait()
}

func TestMatch_RowAndChild(t *testing.T) {
	m := MustResolve("keyrings/public/42/userids/7")
	assert.Equal(t, int64(42), m.Row())
	assert.Equal(t, int64(7), m.Child())

	parent, ok := m.Parent()
	require.True(t, ok)
	assert.Equal(t, "keyrings/public/42", parent)

	_, ok = MustResolve("keyrings/public/42").Parent()
	assert.False(t, ok)
}

func TestMustResolve_Panics(t *testing.T) {
	assert.Panics(t, func() { MustResolve("nope") })
}

func TestCode_Classes(t *testing.T) {
	assert.True(t, List.RingLevel())
	assert.True(t, GetByEmails.RingLevel())
	assert.False(t, ListKeys.RingLevel())

	assert.True(t, GetKey.Child())
	assert.True(t, GetKey.Kinded())
	assert.False(t, OpenBlob.Kinded())
	assert.False(t, GetConsumer.Kinded())

	for _, c := range []Code{GetByRow, GetKey, GetUserID, GetConsumer, GetConsumerByPackage} {
		assert.True(t, c.Item(), c.String())
	}
	for _, c := range []Code{List, GetByMasterKey, GetByKeyID, GetByEmails, ListKeys, ListUserIDs, OpenBlob, ListConsumers} {
		assert.False(t, c.Item(), c.String())
	}

	assert.Equal(t, "GET_BY_EMAILS", GetByEmails.String())
	assert.Equal(t, "UNKNOWN", Code(99).String())
}

func TestBuilders_Resolve(t *testing.T) {
	tests := []struct {
		address string
		code    Code
	}{
		{KeyRings(keyring.KindSecret), List},
		{KeyRing(keyring.KindPublic, 3), GetByRow},
		{ByMasterKey(keyring.KindPublic, keyring.KeyID(-5)), GetByMasterKey},
		{ByKeyID(keyring.KindSecret, keyring.KeyID(77)), GetByKeyID},
		{ByEmails(keyring.KindPublic, "a@x.com", "b@y.com"), GetByEmails},
		{Keys(keyring.KindPublic, 3), ListKeys},
		{Key(keyring.KindPublic, 3, 4), GetKey},
		{UserIDs(keyring.KindSecret, 3), ListUserIDs},
		{UserID(keyring.KindSecret, 3, 4), GetUserID},
		{Blob("ring.gpg"), OpenBlob},
		{Consumers(), ListConsumers},
		{Consumer(9), GetConsumer},
		{ConsumerByPackage("org.example"), GetConsumerByPackage},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			m, err := Resolve(tt.address)
			require.NoError(t, err)
			assert.Equal(t, tt.code, m.Code)
		})
	}

	assert.Equal(t, "keyrings/public/by-emails/a@x.com,b@y.com", ByEmails(keyring.KindPublic, "a@x.com", "b@y.com"))
	assert.Equal(t, "keyrings/public/by-master-key/-5", ByMasterKey(keyring.KindPublic, -5))
}
