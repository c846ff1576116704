package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"multidrive/models"
	"multidrive/providers"
)

// Bekannte Module der Download-Seite.
const (
	ModuleInfo   = "info"
	ModuleLinks  = "links"
	ModuleUnlock = "unlock"
	ModuleNotice = "notice"
)

var knownModules = map[string]bool{
	ModuleInfo: true, ModuleLinks: true, ModuleUnlock: true, ModuleNotice: true,
}

// PageContext trägt die anfragebezogenen Werte durch den Aufbau der Seite.
type PageContext struct {
	ArticleID uint
	Slot      int
	Scene     string
	UserID    uint
}

// SlotInfo sind die Darstellungsfelder eines Slots.
type SlotInfo struct {
	Name   string
	Size   string
	Date   string
	Author string
}

// LinkCard ist eine Karte pro Provider mit konfiguriertem Link.
type LinkCard struct {
	Key      string
	Label    string
	Href     string
	Password string
	Locked   bool
}

// PageView ist alles, was die Vorlage der Download-Seite braucht.
type PageView struct {
	Article   models.Article
	Slot      int
	Slots     []int
	Info      SlotInfo
	Links     []LinkCard
	Modules   []string
	Scene     string
	UnlockURL string
	StatusURL string
	Locked    bool
}

// ArticleReader liefert Artikel und alle ihre Metadaten.
type ArticleReader interface {
	GetArticle(ctx context.Context, id uint) (*models.Article, error)
	AllMeta(ctx context.Context, articleID uint) (map[string]string, error)
}

// PageBuilder setzt die Download-Seite aus geordneten Modulen zusammen.
type PageBuilder struct {
	registry RegistrySource
	articles ArticleReader
	modules  []string
	override UnlockOverride
}

// NewPageBuilder erstellt den Builder. Unbekannte Modulnamen werden ignoriert.
func NewPageBuilder(registry RegistrySource, articles ArticleReader, modules []string, override UnlockOverride) *PageBuilder {
	var ordered []string
	seen := map[string]bool{}
	for _, m := range modules {
		m = strings.TrimSpace(strings.ToLower(m))
		if knownModules[m] && !seen[m] {
			ordered = append(ordered, m)
			seen[m] = true
		}
	}
	return &PageBuilder{registry: registry, articles: articles, modules: ordered, override: override}
}

// Build lädt Artikel und Metadaten und baut die Ansicht für einen Slot.
func (b *PageBuilder) Build(ctx context.Context, pc PageContext) (*PageView, error) {
	if pc.ArticleID == 0 {
		return nil, fmt.Errorf("%w: article id", ErrInvalidParams)
	}
	pc.Slot = ClampSlot(pc.Slot)

	article, err := b.articles.GetArticle(ctx, pc.ArticleID)
	if err != nil {
		return nil, err
	}
	meta, err := b.articles.AllMeta(ctx, pc.ArticleID)
	if err != nil {
		return nil, err
	}

	reg := b.registry.Current()
	view := &PageView{Article: *article, Slot: pc.Slot, Scene: pc.Scene}

	for s := 1; s <= providers.MaxSlots; s++ {
		for _, p := range reg.Providers() {
			if strings.TrimSpace(meta[p.FieldsFor(s).URL]) != "" {
				view.Slots = append(view.Slots, s)
				break
			}
		}
	}

	sf := providers.SlotFieldNames(pc.Slot)
	view.Info = SlotInfo{Name: meta[sf.Name], Size: meta[sf.Size], Date: meta[sf.Date], Author: meta[sf.Author]}
	if view.Info.Name == "" {
		view.Info.Name = article.Title
	}

	for _, p := range reg.Providers() {
		f := p.FieldsFor(pc.Slot)
		if strings.TrimSpace(meta[f.URL]) == "" {
			continue
		}
		locked := ParseFlag(meta[f.Unlock])
		if b.override != nil {
			locked = b.override(ctx, RedirectRequest{ArticleID: pc.ArticleID, Type: p.Key, Slot: pc.Slot, UserID: pc.UserID}, locked)
		}
		view.Links = append(view.Links, LinkCard{
			Key:      p.Key,
			Label:    p.Label,
			Href:     goURL(pc.ArticleID, p.Key, pc.Slot, pc.Scene),
			Password: meta[f.Password],
			Locked:   locked,
		})
		view.Locked = view.Locked || locked
	}

	if view.Locked && pc.Scene != "" {
		view.UnlockURL = "/unlock/" + url.PathEscape(pc.Scene)
		view.StatusURL = view.UnlockURL + "/status"
	}
	for _, m := range b.modules {
		if m == ModuleUnlock && view.UnlockURL == "" {
			continue
		}
		if m == ModuleLinks && len(view.Links) == 0 {
			continue
		}
		view.Modules = append(view.Modules, m)
	}
	return view, nil
}

// goURL baut den Tracking-Link der Redirect-Route.
func goURL(articleID uint, key string, slot int, scene string) string {
	q := url.Values{}
	q.Set("slot", fmt.Sprint(slot))
	if scene != "" {
		q.Set("scene", scene)
	}
	return fmt.Sprintf("/go/%d/%s?%s", articleID, url.PathEscape(key), q.Encode())
}
