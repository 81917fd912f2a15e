package route

import (
	"path"
	"strings"

	"github.com/MrEthical07/goSession/session"
)

const (
	DefaultLoginPath = "/login"
	DefaultHomePath  = "/"
)

// Guard holds the destinations used for redirects. GuestPaths are extra
// destinations that, like the login page, are only meant for signed-out users
// (for example "/register").
type Guard struct {
	LoginPath  string
	HomePath   string
	GuestPaths []string
}

// NewGuard returns a Guard with default login and home destinations.
func NewGuard() Guard {
	return Guard{LoginPath: DefaultLoginPath, HomePath: DefaultHomePath}
}

// Decide returns the redirect destination for target under state, or ok=false
// when navigation may proceed.
func (g Guard) Decide(state session.State, target string) (redirect string, ok bool) {
	login := normalize(g.loginPath())
	target = normalize(target)

	switch state.Kind {
	case session.KindUnauthenticated:
		if target == login || g.isGuest(target) {
			return "", false
		}
		return login, true
	case session.KindAuthenticated:
		if target == login || g.isGuest(target) {
			return normalize(g.homePath()), true
		}
		return "", false
	default:
		return "", false
	}
}

func (g Guard) loginPath() string {
	if g.LoginPath == "" {
		return DefaultLoginPath
	}
	return g.LoginPath
}

func (g Guard) homePath() string {
	if g.HomePath == "" {
		return DefaultHomePath
	}
	return g.HomePath
}

func (g Guard) isGuest(target string) bool {
	for _, p := range g.GuestPaths {
		if normalize(p) == target {
			return true
		}
	}
	return false
}

func normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
