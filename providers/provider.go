package providers

import (
	"errors"
	"fmt"
)

const (
	// MaxSlots ist die Anzahl der Anhang-Slots pro Artikel.
	MaxSlots = 6
	// CustomPrefix kennzeichnet benutzerdefinierte Provider im Typ-Token und in Feldnamen.
	CustomPrefix = "custom_"

	metaPrefix = "mcd"
)

// ErrUnknownProvider wird geliefert, wenn ein Typ-Token zu keinem Provider passt.
var ErrUnknownProvider = errors.New("unknown download provider")

// Provider ist ein konfigurierter Cloud-Speicher.
type Provider struct {
	Key       string
	Label     string
	Alias     string
	IsCustom  bool
	SortOrder int
}

// Fields sind die Metadaten-Feldnamen eines Providers in einem Slot.
type Fields struct {
	URL      string
	Unlock   string
	Password string
}

// SlotFields sind die Darstellungsfelder eines Slots (gemeinsam für alle Provider).
type SlotFields struct {
	Name   string
	Size   string
	Date   string
	Author string
}

// SlotPrefix liefert das Feldpräfix eines Slots: "mcd_" für Slot 1, "mcd2_" … "mcd6_" sonst.
// slot muss bereits in [1, MaxSlots] liegen.
func SlotPrefix(slot int) string {
	if slot <= 1 {
		return metaPrefix + "_"
	}
	return fmt.Sprintf("%s%d_", metaPrefix, slot)
}

// FieldNames berechnet die Feldnamen für (Provider, Slot). Reine Funktion.
func FieldNames(key string, slot int, isCustom bool) Fields {
	base := SlotPrefix(slot) + key
	if isCustom {
		base = SlotPrefix(slot) + CustomPrefix + key
	}
	return Fields{
		URL:      base + "_url",
		Unlock:   base + "_unlock",
		Password: base + "_pwd",
	}
}

// FieldsFor ist FieldNames für einen bekannten Provider.
func (p Provider) FieldsFor(slot int) Fields {
	return FieldNames(p.Key, slot, p.IsCustom)
}

// SlotFieldNames liefert die Darstellungsfelder eines Slots.
func SlotFieldNames(slot int) SlotFields {
	prefix := SlotPrefix(slot)
	return SlotFields{
		Name:   prefix + "name",
		Size:   prefix + "size",
		Date:   prefix + "date",
		Author: prefix + "author",
	}
}
