// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package presence

import (
	"regexp"
	"strings"
)

// routeRule maps an admin console path pattern to a resource type.
// idGroup is the submatch index holding the resource id.
type routeRule struct {
	pattern      *regexp.Regexp
	resourceType ResourceType
	idGroup      int
}

// routeRules are tried in order; the first match wins.
var routeRules = []routeRule{
	{regexp.MustCompile(`^/maps/([^/]+)`), ResourceMap, 1},
	// The layer category segment is discarded; the id is the second group.
	{regexp.MustCompile(`^/(search-layers|editing-layers|display-layers)/([^/]+)`), ResourceLayer, 2},
	{regexp.MustCompile(`^/tools/([^/]+)`), ResourceTool, 1},
	{regexp.MustCompile(`^/groups/([^/]+)`), ResourceGroup, 1},
	{regexp.MustCompile(`^/services/([^/]+)`), ResourceService, 1},
}

// MapPathToResource maps an admin console location path to the resource it
// edits. It returns false when the path is not on a trackable resource.
// Query strings and fragments are ignored. It never panics.
func MapPathToResource(path string) (Resource, bool) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	for _, rule := range routeRules {
		m := rule.pattern.FindStringSubmatch(path)
		if m == nil || len(m) <= rule.idGroup {
			continue
		}
		id := m[rule.idGroup]
		if id == "" {
			continue
		}
		return Resource{Type: rule.resourceType, ID: id}, true
	}
	return Resource{}, false
}

// PathResourceKey returns the resource key for path, or "" when the path is
// not trackable.
func PathResourceKey(path string) string {
	res, ok := MapPathToResource(path)
	if !ok {
		return ""
	}
	return res.Key()
}
