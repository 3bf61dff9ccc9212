package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/keyringdb/internal/keyring"
	"github.com/roach88/keyringdb/internal/queryir"
	"github.com/roach88/keyringdb/internal/route"
	"github.com/roach88/keyringdb/internal/store"
)

// ErrInvalidKeyRing is returned by ImportKeyRing for rings that would
// break the one-master-key or primary-identity invariants.
var ErrInvalidKeyRing = errors.New("invalid key ring")

// ImportKeyRing writes a ring with all of its keys and user ids in one
// transaction and returns the ring's address. The ring must have exactly
// one master key and exactly one rank 0 user id; master_key_id defaults to the
// master key's id. On any failure nothing is written.
func (p *Provider) ImportKeyRing(ctx context.Context, ring keyring.KeyRing) (string, error) {
	if !ring.Kind.Valid() {
		return "", fmt.Errorf("%w: kind %d", ErrInvalidKeyRing, int64(ring.Kind))
	}
	m := route.MustResolve(route.KeyRings(ring.Kind))
	if p.store.ReadOnly() {
		return "", store.ErrReadOnly
	}

	addr, err := p.importKeyRing(ctx, m, ring)
	p.record(m, opImport, err)
	return addr, err
}

func (p *Provider) importKeyRing(ctx context.Context, m route.Match, ring keyring.KeyRing) (string, error) {
	master, ok := ring.MasterKey()
	if !ok {
		return "", fmt.Errorf("%w: need exactly one master key, have %d keys", ErrInvalidKeyRing, len(ring.Keys))
	}
	if _, ok := ring.PrimaryUserID(); !ok {
		return "", fmt.Errorf("%w: need exactly one rank 0 user id", ErrInvalidKeyRing)
	}
	if ring.MasterKeyID == nil {
		id := master.KeyID
		ring.MasterKeyID = &id
	}

	ringPlan, err := planFor(m)
	if err != nil {
		return "", err
	}
	ringValues, err := p.preparePayload(ringPlan, ring.Values(), false)
	if err != nil {
		return "", err
	}

	var ringID int64
	err = p.inTx(ctx, func(tx *sql.Tx) error {
		res, err := p.execStatement(ctx, tx, opImport, queryir.Insert{Table: keyring.TableKeyRings, Values: ringValues})
		if err != nil {
			return err
		}
		if ringID, err = res.LastInsertId(); err != nil {
			return err
		}

		keysPlan, err := planFor(route.MustResolve(route.Keys(ring.Kind, ringID)))
		if err != nil {
			return err
		}
		for _, k := range ring.Keys {
			values, err := p.preparePayload(keysPlan, k.Values(), false)
			if err != nil {
				return err
			}
			if _, err := p.execStatement(ctx, tx, opImport, queryir.Insert{Table: keyring.TableKeys, Values: values}); err != nil {
				return err
			}
		}

		uidPlan, err := planFor(route.MustResolve(route.UserIDs(ring.Kind, ringID)))
		if err != nil {
			return err
		}
		for _, u := range ring.UserIDs {
			values, err := p.preparePayload(uidPlan, u.Values(), false)
			if err != nil {
				return err
			}
			if _, err := p.execStatement(ctx, tx, opImport, queryir.Insert{Table: keyring.TableUserIDs, Values: values}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", p.writeError(m, keyring.TableKeyRings, opImport, err)
	}

	addr := route.KeyRing(ring.Kind, ringID)
	p.log.Info("imported key ring",
		"address", addr,
		"master_key_id", ring.MasterKeyID.String(),
		"keys", len(ring.Keys),
		"user_ids", len(ring.UserIDs))
	p.notify(ctx, addr, m.Address)
	return addr, nil
}
