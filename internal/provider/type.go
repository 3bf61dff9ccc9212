package provider

import (
	"fmt"

	"github.com/roach88/keyringdb/internal/route"
)

const (
	contentTypeDir  = "vnd.keyringdb.dir/"
	contentTypeItem = "vnd.keyringdb.item/"
	contentTypeBlob = "application/octet-stream"
)

// Type returns the content type of the data an address denotes:
// a collection type for listings and email searches, an item type for
// addresses that name a single ring, key, user id or consumer.
func (p *Provider) Type(address string) (string, error) {
	m, err := route.Resolve(address)
	if err != nil {
		return "", err
	}
	return contentType(m)
}

func contentType(m route.Match) (string, error) {
	kind := m.Kind.String()

	switch m.Code {
	case route.List, route.GetByEmails:
		return contentTypeDir + kind + ".key_ring", nil
	case route.GetByRow, route.GetByMasterKey, route.GetByKeyID:
		return contentTypeItem + kind + ".key_ring", nil
	case route.ListKeys:
		return contentTypeDir + kind + ".key", nil
	case route.GetKey:
		return contentTypeItem + kind + ".key", nil
	case route.ListUserIDs:
		return contentTypeDir + kind + ".user_id", nil
	case route.GetUserID:
		return contentTypeItem + kind + ".user_id", nil
	case route.ListConsumers:
		return contentTypeDir + "crypto_consumer", nil
	case route.GetConsumer, route.GetConsumerByPackage:
		return contentTypeItem + "crypto_consumer", nil
	case route.OpenBlob:
		return contentTypeBlob, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, m.Code)
	}
}
