// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package presence

import (
	"fmt"
	"strconv"
	"time"
)

// ResourceType identifies the kind of admin resource an actor is editing.
type ResourceType string

// Trackable resource types.
const (
	ResourceMap     ResourceType = "map"
	ResourceLayer   ResourceType = "layer"
	ResourceTool    ResourceType = "tool"
	ResourceGroup   ResourceType = "group"
	ResourceService ResourceType = "service"
)

// ResourceTypes lists every trackable resource type.
var ResourceTypes = []ResourceType{
	ResourceMap,
	ResourceLayer,
	ResourceTool,
	ResourceGroup,
	ResourceService,
}

// Valid reports whether rt is one of the trackable resource types.
func (rt ResourceType) Valid() bool {
	switch rt {
	case ResourceMap, ResourceLayer, ResourceTool, ResourceGroup, ResourceService:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (rt ResourceType) String() string {
	return string(rt)
}

// Resource is a (type, id) pair naming one editable admin resource.
type Resource struct {
	Type ResourceType `json:"resourceType"`
	ID   string       `json:"resourceId"`
}

// Key returns the "{type}:{id}" resource key.
func (r Resource) Key() string {
	return ResourceKey(r.Type, r.ID)
}

// ResourceKey formats the key used for change detection and grouping.
func ResourceKey(rt ResourceType, id string) string {
	return string(rt) + ":" + id
}

// Presence is one actor's current editing focus.
//
// ID is unique per navigation event; ActorID is stable for the user.
// Timestamp is in unix milliseconds.
type Presence struct {
	ID           string       `json:"id"`
	ActorID      string       `json:"userId"`
	DisplayName  string       `json:"userName"`
	ResourceType ResourceType `json:"resourceType"`
	ResourceID   string       `json:"resourceId"`
	Timestamp    int64        `json:"timestamp"`
}

// New builds a presence for actorID on res at time now. The id combines
// the actor id with the millisecond timestamp.
func New(actorID, displayName string, res Resource, now time.Time) Presence {
	ms := now.UnixMilli()
	return Presence{
		ID:           NewID(actorID, now),
		ActorID:      actorID,
		DisplayName:  displayName,
		ResourceType: res.Type,
		ResourceID:   res.ID,
		Timestamp:    ms,
	}
}

// NewID returns the composite "{actorID}-{unixMillis}" presence id.
func NewID(actorID string, now time.Time) string {
	return actorID + "-" + strconv.FormatInt(now.UnixMilli(), 10)
}

// ResourceKey returns the presence's "{type}:{id}" key.
func (p Presence) ResourceKey() string {
	return ResourceKey(p.ResourceType, p.ResourceID)
}

// Resource returns the resource the presence points at.
func (p Presence) Resource() Resource {
	return Resource{Type: p.ResourceType, ID: p.ResourceID}
}

// Time returns the presence timestamp as a time.Time.
func (p Presence) Time() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// Matches reports whether the presence is on the given resource.
func (p Presence) Matches(rt ResourceType, id string) bool {
	return p.ResourceType == rt && p.ResourceID == id
}

// Label is the name shown to other actors. Falls back to the actor id.
func (p Presence) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ActorID
}

// String implements fmt.Stringer for logging.
func (p Presence) String() string {
	return fmt.Sprintf("%s(%s)@%s", p.Label(), p.ID, p.ResourceKey())
}
