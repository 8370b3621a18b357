// Hajk Presence - Collaborative editing awareness for the Hajk admin console
// Copyright 2026 The Hajk Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hajkmap/hajk-presence

// Package i18n holds the user-facing strings of the presence notifications,
// backed by a golang.org/x/text message catalog.
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/hajkmap/hajk-presence/internal/presence"
)

// Message keys.
const (
	KeyStartedEditing = "presence.started_editing"
	KeyStoppedEditing = "presence.stopped_editing"
	KeyOthersEditing  = "presence.others_editing"
	KeyConnection     = "presence.connection"
)

func resourceKey(rt presence.ResourceType) string {
	return "resource." + string(rt)
}

// translations is the source of the catalog. English is the fallback.
var translations = map[language.Tag]map[string]string{
	language.English: {
		KeyStartedEditing: "%s started editing this %s",
		KeyStoppedEditing: "%s stopped editing this %s",
		KeyOthersEditing:  "Also editing: %s",
		KeyConnection:     "Presence connection: %s",

		"resource.map":     "map",
		"resource.layer":   "layer",
		"resource.tool":    "tool",
		"resource.group":   "group",
		"resource.service": "service",
	},
	language.Swedish: {
		KeyStartedEditing: "%s började redigera %s",
		KeyStoppedEditing: "%s slutade redigera %s",
		KeyOthersEditing:  "Redigerar också: %s",
		KeyConnection:     "Närvaroanslutning: %s",

		"resource.map":     "kartan",
		"resource.layer":   "lagret",
		"resource.tool":    "verktyget",
		"resource.group":   "gruppen",
		"resource.service": "tjänsten",
	},
}

// supported lists the catalog languages, fallback first.
var supported = []language.Tag{language.English, language.Swedish}

var (
	cat     = mustBuildCatalog()
	matcher = language.NewMatcher(supported)
)

func mustBuildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range translations {
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(fmt.Sprintf("i18n: %s %s: %v", tag, key, err))
			}
		}
	}
	return b
}

// Translator renders notification strings in one language.
type Translator struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a translator for the best supported match of lang (a BCP 47
// tag or Accept-Language value). Unknown languages get English.
func New(lang string) *Translator {
	tag := supported[0]
	if lang != "" {
		desired, _, err := language.ParseAcceptLanguage(lang)
		if err == nil && len(desired) > 0 {
			_, idx, conf := matcher.Match(desired...)
			if conf != language.No {
				tag = supported[idx]
			}
		}
	}
	return &Translator{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(cat)),
	}
}

// Language returns the selected language tag.
func (t *Translator) Language() language.Tag {
	return t.tag
}

// T renders key with args.
func (t *Translator) T(key string, args ...interface{}) string {
	return t.printer.Sprintf(key, args...)
}

// ResourceName returns the localized noun for a resource type.
func (t *Translator) ResourceName(rt presence.ResourceType) string {
	if !rt.Valid() {
		return string(rt)
	}
	return t.printer.Sprintf(resourceKey(rt))
}

// StartedEditing renders the join notification.
func (t *Translator) StartedEditing(name string, rt presence.ResourceType) string {
	return t.T(KeyStartedEditing, name, t.ResourceName(rt))
}

// StoppedEditing renders the leave notification.
func (t *Translator) StoppedEditing(name string, rt presence.ResourceType) string {
	return t.T(KeyStoppedEditing, name, t.ResourceName(rt))
}

// OthersEditing renders the badge line listing the other admins on a
// resource.
func (t *Translator) OthersEditing(names []string) string {
	return t.T(KeyOthersEditing, strings.Join(names, ", "))
}

// Connection renders the connection status line for a channel state name.
func (t *Translator) Connection(state string) string {
	return t.T(KeyConnection, state)
}

// Supported returns the catalog languages.
func Supported() []language.Tag {
	out := make([]language.Tag, len(supported))
	copy(out, supported)
	return out
}
