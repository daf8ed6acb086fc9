// Package i18n defines the translation-engine contract the startup sequence
// initializes, plus the catalog implementation the corehost ships with.
package i18n

import (
	"context"
	"sync/atomic"

	"golang.org/x/text/language"
)

// Direction of text layout for the active locale.
type Direction string

const (
	DirectionLTR Direction = "ltr"
	DirectionRTL Direction = "rtl"
)

// Engine is what the startup orchestrator needs from the translation layer.
// Init failure is non-fatal: lookups degrade to raw keys.
type Engine interface {
	Init(ctx context.Context) error
	ApplyDirectionIfNeeded() Direction
}

// Catalog is a locale-keyed string catalog. Ready flips once Init succeeds;
// until then (and for missing keys after) Lookup returns the raw key so the
// UI renders something rather than blocking.
type Catalog struct {
	locale  string
	strings map[string]string
	ready   atomic.Bool
}

func NewCatalog(locale string, strings map[string]string) *Catalog {
	return &Catalog{locale: locale, strings: strings}
}

func (c *Catalog) Init(_ context.Context) error {
	// String tables ship compiled-in; init just validates the locale tag.
	if _, err := language.Parse(c.locale); err != nil {
		return err
	}
	c.ready.Store(true)
	return nil
}

func (c *Catalog) Ready() bool { return c.ready.Load() }

// Lookup returns the translation, or the key itself when the catalog is not
// ready or the key is missing.
func (c *Catalog) Lookup(key string) string {
	if !c.ready.Load() {
		return key
	}
	if value, ok := c.strings[key]; ok {
		return value
	}
	return key
}

// ApplyDirectionIfNeeded derives layout direction from the locale's script.
func (c *Catalog) ApplyDirectionIfNeeded() Direction {
	tag, err := language.Parse(c.locale)
	if err != nil {
		return DirectionLTR
	}
	script, _ := tag.Script()
	switch script.String() {
	case "Arab", "Hebr", "Thaa":
		return DirectionRTL
	default:
		return DirectionLTR
	}
}
