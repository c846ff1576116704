package providers

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var keyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]{0,63}$`)

// Registry löst Typ-Tokens zu Providern auf. Nach NewRegistry unveränderlich.
type Registry struct {
	ordered []Provider
	byKey   map[string]Provider
	byAlias map[string]Provider
	custom  map[string]Provider
}

// fold normalisiert Groß-/Kleinschreibung und Vollbreite-Zeichen (z.B. "ＢＤ") für Vergleiche.
func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
}

// NewRegistry prüft die Provider-Liste und baut die Lookup-Tabellen.
// Schlüssel müssen eindeutig sein, Aliase untereinander (ohne Groß-/Kleinschreibung)
// ebenfalls, und kein Feldname darf doppelt vergeben werden.
func NewRegistry(list []Provider) (*Registry, error) {
	r := &Registry{
		byKey:   make(map[string]Provider, len(list)),
		byAlias: make(map[string]Provider),
		custom:  make(map[string]Provider),
	}
	fieldOwner := make(map[string]string)
	for s := 1; s <= MaxSlots; s++ {
		sf := SlotFieldNames(s)
		for _, f := range []string{sf.Name, sf.Size, sf.Date, sf.Author} {
			fieldOwner[f] = fmt.Sprintf("slot %d", s)
		}
	}

	for _, p := range list {
		if !keyPattern.MatchString(p.Key) {
			return nil, fmt.Errorf("provider key %q: only lowercase letters, digits and '_' allowed", p.Key)
		}
		if _, dup := r.byKey[p.Key]; dup {
			return nil, fmt.Errorf("provider key %q is configured twice", p.Key)
		}
		if p.Label == "" {
			p.Label = p.Key
		}
		if a := fold(p.Alias); a != "" {
			if other, dup := r.byAlias[a]; dup {
				return nil, fmt.Errorf("alias %q is used by %q and %q", p.Alias, other.Key, p.Key)
			}
			r.byAlias[a] = p
		}
		for s := 1; s <= MaxSlots; s++ {
			f := p.FieldsFor(s)
			for _, name := range []string{f.URL, f.Unlock, f.Password} {
				if owner, dup := fieldOwner[name]; dup {
					return nil, fmt.Errorf("field %q of provider %q collides with %s", name, p.Key, owner)
				}
				fieldOwner[name] = fmt.Sprintf("provider %q", p.Key)
			}
		}
		r.byKey[p.Key] = p
		if p.IsCustom {
			r.custom[p.Key] = p
		}
		r.ordered = append(r.ordered, p)
	}

	sort.SliceStable(r.ordered, func(i, j int) bool {
		if r.ordered[i].SortOrder != r.ordered[j].SortOrder {
			return r.ordered[i].SortOrder < r.ordered[j].SortOrder
		}
		return r.ordered[i].Key < r.ordered[j].Key
	})
	return r, nil
}

// Resolve findet den Provider zu einem Typ-Token. Reihenfolge: exakter Schlüssel,
// dann Alias, dann Schlüssel eines Custom-Providers nach Entfernen von "custom_".
func (r *Registry) Resolve(token string) (Provider, error) {
	t := fold(token)
	if t == "" {
		return Provider{}, ErrUnknownProvider
	}
	if p, ok := r.byKey[t]; ok {
		return p, nil
	}
	if p, ok := r.byAlias[t]; ok {
		return p, nil
	}
	// Altdaten: Links wurden früher mit "custom_<key>" erzeugt.
	if rest, ok := strings.CutPrefix(t, CustomPrefix); ok {
		if p, ok := r.custom[rest]; ok {
			return p, nil
		}
	}
	return Provider{}, fmt.Errorf("%w: %q", ErrUnknownProvider, token)
}

// Providers gibt alle Provider in Anzeige-Reihenfolge zurück.
func (r *Registry) Providers() []Provider {
	out := make([]Provider, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len gibt die Anzahl der Provider zurück.
func (r *Registry) Len() int {
	return len(r.ordered)
}
