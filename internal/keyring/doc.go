// Package keyring defines the data model shared by every layer of keyringdb.
//
// This package contains type definitions only. All other internal packages
// import keyring; keyring imports nothing internal.
//
// Key design constraints:
//   - One physical key_rings table serves two logical kinds, distinguished
//     by Kind. Kind is a closed enum; Kind values outside PUBLIC/SECRET are
//     rejected at every API boundary.
//   - Column values are carried as the sealed Value interface. There is no
//     float Value: key material, ids and flags are all integral or opaque.
//   - All JSON tags use snake_case.
package keyring
