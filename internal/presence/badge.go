// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

package presence

import "sort"

// Reader is the read side of a Registry. Badge projectors only need this.
type Reader interface {
	Query(rt ResourceType, id string) []Presence
}

// OthersOnResource returns the other actors' presences on a resource.
func OthersOnResource(r Reader, rt ResourceType, id string) []Presence {
	if r == nil {
		return nil
	}
	return r.Query(rt, id)
}

// BadgeCount is the compact badge form: how many other presences are on the
// resource.
func BadgeCount(r Reader, rt ResourceType, id string) int {
	return len(OthersOnResource(r, rt, id))
}

// BadgeNames is the verbose badge form: the sorted display names of the
// other actors on the resource, one per actor.
func BadgeNames(r Reader, rt ResourceType, id string) []string {
	others := OthersOnResource(r, rt, id)
	seen := make(map[string]struct{}, len(others))
	names := make([]string, 0, len(others))
	for _, p := range others {
		if _, dup := seen[p.ActorID]; dup {
			continue
		}
		seen[p.ActorID] = struct{}{}
		names = append(names, p.Label())
	}
	sort.Strings(names)
	return names
}

// ByActor indexes presences by actor id.
func ByActor(presences []Presence) map[string]Presence {
	out := make(map[string]Presence, len(presences))
	for _, p := range presences {
		// Keep the newest presence per actor so the label is current.
		if prev, ok := out[p.ActorID]; ok && prev.Timestamp > p.Timestamp {
			continue
		}
		out[p.ActorID] = p
	}
	return out
}

// sortPresences orders by timestamp, then id, so snapshots are stable.
func sortPresences(ps []Presence) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Timestamp != ps[j].Timestamp {
			return ps[i].Timestamp < ps[j].Timestamp
		}
		return ps[i].ID < ps[j].ID
	})
}
