// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

/*
Package validation provides struct validation using go-playground/validator v10.

The relay hub validates every inbound register and presence-update payload
before it touches the registry; configuration validation uses the same
singleton.

Custom tags:

	resourcetype   one of map, layer, tool, group, service
	notblank       non-empty after trimming whitespace
	printable      no control characters

Field names in errors are the JSON wire names, so a rejected payload reports
"resourceType is required" rather than "ResourceType is required".

Example:

	type ResourcePayload struct {
	    ResourceType presence.ResourceType `json:"resourceType" validate:"required,resourcetype"`
	    ResourceID   string                `json:"resourceId" validate:"required,notblank,max=256"`
	}

	if verr := validation.ValidateStruct(&p); verr != nil {
	    logger.Warn().Str("error", verr.Error()).Msg("rejected payload")
	}

The validator instance caches struct metadata and is safe for concurrent use.
*/
package validation
