package provider

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/keyringdb/internal/keyring"
	"github.com/roach88/keyringdb/internal/queryir"
)

// splitEmails parses a by-emails parameter: comma separated, surrounding
// whitespace trimmed, empty segments skipped, each NFC-normalized.
func splitEmails(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		email := strings.TrimSpace(part)
		if email == "" {
			continue
		}
		out = append(out, norm.NFC.String(email))
	}
	return out
}

// emailPredicate requires some user id of the ring to end with <email>
// for at least one of emails. Wrapping in angle brackets means an email
// only matches as the whole trailing token, never inside a longer
// address or domain. Returns nil when emails is empty.
func emailPredicate(emails []string) queryir.Predicate {
	if len(emails) == 0 {
		return nil
	}

	matched := queryir.TableRef{Name: keyring.TableUserIDs, Alias: "matched"}
	text := queryir.C(matched.Alias, keyring.ColUserID)

	anyEmail := make([]queryir.Predicate, len(emails))
	for i, email := range emails {
		anyEmail[i] = queryir.EndsWith{Col: text, Suffix: "<" + email + ">"}
	}

	return queryir.Exists{Query: queryir.Select{
		From: matched,
		Where: queryir.AllOf(
			queryir.ColumnEquals{
				Left:  queryir.C(matched.Alias, keyring.ColKeyRingRowID),
				Right: queryir.C(keyring.TableKeyRings, keyring.ColID),
			},
			queryir.Or{Predicates: anyEmail},
		),
	}}
}

// normalizeUserID NFC-normalizes user id text in a payload so stored text
// and by-emails parameters compare in the same form.
func normalizeUserID(values keyring.Values) {
	if s, ok := values[keyring.ColUserID].(keyring.String); ok {
		values[keyring.ColUserID] = keyring.String(norm.NFC.String(string(s)))
	}
}
