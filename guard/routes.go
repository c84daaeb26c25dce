package guard

import (
	"strings"

	"github.com/jrsteele09/myoutlet-admin/authstatus"
)

// Class is the access class of a path.
type Class int

const (
	ClassOther Class = iota
	ClassProtected
	ClassAuthOnly
	ClassPublic
	ClassExempt
)

func (c Class) String() string {
	switch c {
	case ClassProtected:
		return "protected"
	case ClassAuthOnly:
		return "auth-only"
	case ClassPublic:
		return "public"
	case ClassExempt:
		return "exempt"
	default:
		return "other"
	}
}

// Routes classifies paths. Protected, auth-only and exempt entries match a path and everything
// below it; public entries match exactly.
type Routes struct {
	Protected []string
	AuthOnly  []string
	Public    []string
	Exempt    []string

	authstatus.Targets
}

// within reports whether path is route or below it.
func within(path, route string) bool {
	if path == route {
		return true
	}
	if route == "/" {
		return false
	}
	return strings.HasPrefix(path, strings.TrimSuffix(route, "/")+"/")
}

func matchAny(path string, routes []string, match func(path, route string) bool) bool {
	for _, r := range routes {
		if match(path, r) {
			return true
		}
	}
	return false
}

func exact(path, route string) bool {
	return path == route
}

// Classify returns the class of path. Exempt wins, then protected, auth-only and public.
func (r Routes) Classify(path string) Class {
	switch {
	case matchAny(path, r.Exempt, within):
		return ClassExempt
	case matchAny(path, r.Protected, within):
		return ClassProtected
	case matchAny(path, r.AuthOnly, within):
		return ClassAuthOnly
	case matchAny(path, r.Public, exact):
		return ClassPublic
	default:
		return ClassOther
	}
}

// Decide returns where a request for path must be redirected, or "" to let it through.
func Decide(path string, status authstatus.Status, r Routes) string {
	switch r.Classify(path) {
	case ClassExempt:
		return ""
	case ClassProtected:
		if !status.HasToken {
			return r.Entry
		}
		if !status.HasStoreData {
			return r.Register
		}
	case ClassAuthOnly:
		if !status.HasToken {
			return r.Entry
		}
		if status.HasStoreData {
			return r.Dashboard
		}
	case ClassPublic:
		if status.FullSession() {
			return r.Dashboard
		}
	}

	if target := status.ShouldRedirectTo; target != "" && !within(path, target) {
		return target
	}
	return ""
}
