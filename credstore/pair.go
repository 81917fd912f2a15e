package credstore

// Pair is the access/refresh token pair issued by the Auth Server.
//
// A Pair is an immutable value: a rotation always replaces both tokens.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Valid reports whether both tokens are present.
func (p Pair) Valid() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}
