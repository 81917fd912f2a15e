// Package jwt signs and verifies the HS256 access tokens issued by the
// development Auth Server. The session client itself treats access tokens as
// opaque and never imports this package.
package jwt
