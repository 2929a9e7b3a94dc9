package kdf

import "github.com/JonMunkholm/munihash/internal/schema"

// DeriveSalt returns the salt for a record identifier: the identifier's UTF-8
// bytes, untouched. Any change here changes every previously emitted hash.
func DeriveSalt(id string) []byte {
	return []byte(id)
}

// EncodePassword concatenates tom, ibge, nameTom, nameIbge and region with no
// separator. The result is compared, never parsed back.
func EncodePassword(r schema.Record) string {
	return r.Tom + r.IBGE + r.NameTom + r.NameIBGE + r.Region
}
