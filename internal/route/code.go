package route

// Code classifies a resource address. Every well-formed address maps to
// exactly one Code.
type Code int

const (
	Unknown Code = iota

	// Ring-level reads, all projected as {id, master_key_id, primary_user_id}.
	List           // keyrings/<kind>
	GetByRow       // keyrings/<kind>/<rowId>
	GetByMasterKey // keyrings/<kind>/by-master-key/<masterKeyId>
	GetByKeyID     // keyrings/<kind>/by-key/<keyId>
	GetByEmails    // keyrings/<kind>/by-emails/<emailList>

	// Child tables, scoped by the owning ring.
	ListKeys    // keyrings/<kind>/<rowId>/keys
	GetKey      // keyrings/<kind>/<rowId>/keys/<rowId2>
	ListUserIDs // keyrings/<kind>/<rowId>/userids
	GetUserID   // keyrings/<kind>/<rowId>/userids/<rowId2>

	OpenBlob // data/<name>

	// Crypto consumer allowlist.
	ListConsumers        // consumers
	GetConsumer          // consumers/<rowId>
	GetConsumerByPackage // consumers/by-package/<packageName>
)

var codeNames = map[Code]string{
	Unknown:              "UNKNOWN",
	List:                 "LIST",
	GetByRow:             "GET_BY_ROW",
	GetByMasterKey:       "GET_BY_MASTER_KEY",
	GetByKeyID:           "GET_BY_KEY_ID",
	GetByEmails:          "GET_BY_EMAILS",
	ListKeys:             "LIST_KEYS",
	GetKey:               "GET_KEY",
	ListUserIDs:          "LIST_USERIDS",
	GetUserID:            "GET_USERID",
	OpenBlob:             "OPEN_BLOB",
	ListConsumers:        "LIST_CONSUMERS",
	GetConsumer:          "GET_CONSUMER",
	GetConsumerByPackage: "GET_CONSUMER_BY_PACKAGE",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// RingLevel reports whether c reads key-ring-level data through the
// ring/master-key/primary-user-id join.
func (c Code) RingLevel() bool {
	switch c {
	case List, GetByRow, GetByMasterKey, GetByKeyID, GetByEmails:
		return true
	}
	return false
}

// Kinded reports whether addresses with this code carry a kind segment.
func (c Code) Kinded() bool {
	return c.RingLevel() || c.Child()
}

// Child reports whether c addresses a key or user id of one ring.
func (c Code) Child() bool {
	switch c {
	case ListKeys, GetKey, ListUserIDs, GetUserID:
		return true
	}
	return false
}

// Item reports whether c addresses at most one row by its identity.
// Only item routes accept update and delete.
func (c Code) Item() bool {
	switch c {
	case GetByRow, GetKey, GetUserID, GetConsumer, GetConsumerByPackage:
		return true
	}
	return false
}
