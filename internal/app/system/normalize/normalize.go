// Package normalize cleans user-supplied identifiers before they are stored
// or compared.
package normalize

import "strings"

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name. Case is preserved.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Role trims and lowercases a trip role.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Status trims and lowercases a status value.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Currency trims and uppercases an ISO currency code.
func Currency(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// DerivedID is the legacy placeholder key built from an email before the
// owner had an account: the first "@" and then the first "." are replaced by
// "_". The email is used exactly as given, matching the stored records.
//
// Different emails can collide under this transform, so it is only used to
// find legacy records, never to create new ones.
func DerivedID(email string) string {
	id := strings.Replace(email, "@", "_", 1)
	return strings.Replace(id, ".", "_", 1)
}
