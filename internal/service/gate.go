package service

import "net/url"

// RouteMeta describes the access rule of a UI route.
type RouteMeta struct {
	Path         string
	RequiresAuth bool
	GuestOnly    bool
}

type Decision struct {
	Allow    bool
	Redirect string
}

// Gate is the single authentication rule: protected routes send anonymous
// users to the login page, guest-only routes send signed-in users home.
func Gate(route RouteMeta, authenticated bool) Decision {
	switch {
	case route.RequiresAuth && !authenticated:
		return Decision{Redirect: "/login?redirect=" + url.QueryEscape(route.Path)}
	case route.GuestOnly && authenticated:
		return Decision{Redirect: "/"}
	default:
		return Decision{Allow: true}
	}
}
