package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"multidrive/models"
)

// MetaStore liest und schreibt Artikel und deren Metadaten.
type MetaStore struct {
	DB *gorm.DB
}

// NewMetaStore erstellt einen MetaStore.
func NewMetaStore(db *gorm.DB) *MetaStore {
	return &MetaStore{DB: db}
}

// GetArticle lädt einen Artikel; unbekannte IDs ergeben ErrArticleNotFound.
func (s *MetaStore) GetArticle(ctx context.Context, id uint) (*models.Article, error) {
	var a models.Article
	if err := s.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrArticleNotFound, id)
		}
		return nil, err
	}
	return &a, nil
}

// SaveArticle legt einen Artikel mit fester ID an oder aktualisiert ihn.
func (s *MetaStore) SaveArticle(ctx context.Context, a *models.Article) error {
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "excerpt", "author", "updated_at"}),
	}).Create(a).Error
}

// GetMeta liefert den Wert eines Feldes oder "" wenn es fehlt.
func (s *MetaStore) GetMeta(ctx context.Context, articleID uint, key string) (string, error) {
	var m models.ArticleMeta
	err := s.DB.WithContext(ctx).
		Where("article_id = ? AND meta_key = ?", articleID, key).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return m.MetaValue, nil
}

// AllMeta liefert alle Felder eines Artikels.
func (s *MetaStore) AllMeta(ctx context.Context, articleID uint) (map[string]string, error) {
	var rows []models.ArticleMeta
	if err := s.DB.WithContext(ctx).Where("article_id = ?", articleID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.MetaKey] = r.MetaValue
	}
	return out, nil
}

// SetMeta schreibt mehrere Felder auf einmal (Upsert). Leere Werte löschen das Feld.
func (s *MetaStore) SetMeta(ctx context.Context, articleID uint, values map[string]string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for k, v := range values {
			if v == "" {
				if err := tx.Where("article_id = ? AND meta_key = ?", articleID, k).Delete(&models.ArticleMeta{}).Error; err != nil {
					return err
				}
				continue
			}
			row := models.ArticleMeta{ArticleID: articleID, MetaKey: k, MetaValue: v}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "article_id"}, {Name: "meta_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"meta_value"}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
