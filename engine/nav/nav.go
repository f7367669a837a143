// Package nav maps page paths to the parameters the dashboard and topic
// state machines consume, and builds those paths for programmatic
// navigation.
package nav

import (
	"net/url"
	"strings"
)

// Kind identifies the page a path resolves to.
type Kind string

const (
	KindHome      Kind = "home"
	KindDashboard Kind = "dashboard"
	KindTopic     Kind = "topic"
	KindNotFound  Kind = "notfound"
)

// Route is a resolved path. Param is the category key for KindDashboard
// and the topic key for KindTopic.
type Route struct {
	Kind  Kind   `json:"kind"`
	Param string `json:"param,omitempty"`
}

// Parse resolves path. A single trailing slash is tolerated; anything that
// is not "/", "/dashboard/{key}" or "/topic/{key}" is KindNotFound.
func Parse(path string) Route {
	if path == "" || path == "/" {
		return Route{Kind: KindHome}
	}
	path = strings.TrimSuffix(path, "/")
	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(segs) != 2 || segs[1] == "" {
		return Route{Kind: KindNotFound}
	}
	param, err := url.PathUnescape(segs[1])
	if err != nil || param == "" {
		return Route{Kind: KindNotFound}
	}
	switch segs[0] {
	case "dashboard":
		return Route{Kind: KindDashboard, Param: param}
	case "topic":
		return Route{Kind: KindTopic, Param: param}
	}
	return Route{Kind: KindNotFound}
}

// Path builds the page path for r. It is the inverse of Parse.
func (r Route) Path() string {
	switch r.Kind {
	case KindHome:
		return "/"
	case KindDashboard:
		return DashboardPath(r.Param)
	case KindTopic:
		return TopicPath(r.Param)
	}
	return ""
}

// DashboardPath is the page path of a category dashboard.
func DashboardPath(categoryKey string) string {
	return "/dashboard/" + url.PathEscape(categoryKey)
}

// TopicPath is the page path of a topic page.
func TopicPath(topicKey string) string {
	return "/topic/" + url.PathEscape(topicKey)
}
