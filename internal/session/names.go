package session

// CookieName is a cookie written by the login flow. Every place that sets
// or clears cookies uses these constants.
type CookieName string

const (
	CookieUsername   CookieName = "oauthUsername"
	CookieUserID     CookieName = "oauthUserId"
	CookieFullName   CookieName = "oauthFullName"
	CookieTrustLevel CookieName = "oauthTrustLevel"

	// extended attributes, written only when populated
	CookieEmail         CookieName = "oauthEmail"
	CookiePersonalEmail CookieName = "oauthPersonalEmail"
	CookieStudentID     CookieName = "oauthStudentId"

	// CookieState only lives between the authorization redirect and its callback.
	CookieState CookieName = "oauthState"
)

func (n CookieName) String() string {
	return string(n)
}

// CoreCookieNames are always written by Encode.
func CoreCookieNames() []CookieName {
	return []CookieName{CookieUsername, CookieUserID, CookieFullName, CookieTrustLevel}
}

// ExtendedCookieNames are optional session attributes.
func ExtendedCookieNames() []CookieName {
	return []CookieName{CookieEmail, CookiePersonalEmail, CookieStudentID}
}

// AllCookieNames lists every cookie the service ever writes, including the
// transient state cookie. Clear expires all of them.
func AllCookieNames() []CookieName {
	names := append(CoreCookieNames(), ExtendedCookieNames()...)
	return append(names, CookieState)
}
