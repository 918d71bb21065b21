package remote

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ledger-sync-go/internal/models"
	"ledger-sync-go/internal/store"
)

type categoryRow struct {
	Id        string
	UserId    string
	Name      string
	Color     string
	Icon      string
	CreatedAt time.Time
}

func (r categoryRow) toModel() models.Category {
	return models.Category{
		Id:        r.Id,
		UserId:    r.UserId,
		Name:      r.Name,
		Color:     r.Color,
		Icon:      r.Icon,
		CreatedAt: r.CreatedAt,
	}
}

func (s *Service) GetCategories(ctx context.Context, userId string) ([]models.Category, error) {
	var rows []categoryRow
	err := s.db.WithContext(ctx).
		Table("categories").
		Where("user_id = ?", userId).
		Order("name").
		Scan(&rows).Error
	if err != nil {
		return nil, translateError("GetCategories", "categories", "", err)
	}
	categories := make([]models.Category, len(rows))
	for i, row := range rows {
		categories[i] = row.toModel()
	}
	return categories, nil
}

func (s *Service) CreateCategory(ctx context.Context, userId, name, color, icon string) (*models.Category, error) {
	if name == "" {
		return nil, &store.ValidationError{Field: "name", Reason: "name is required"}
	}
	row := categoryRow{
		Id:        uuid.New().String(),
		UserId:    userId,
		Name:      name,
		Color:     color,
		Icon:      icon,
		CreatedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Table("categories").Create(&row).Error
	if err != nil {
		return nil, translateError("CreateCategory", "categories", row.Id, err)
	}
	category := row.toModel()
	return &category, nil
}

func (s *Service) GetCurrencies(ctx context.Context) ([]models.Currency, error) {
	var currencies []models.Currency
	err := s.db.WithContext(ctx).
		Table("currencies").
		Order("code").
		Scan(&currencies).Error
	if err != nil {
		return nil, translateError("GetCurrencies", "currencies", "", err)
	}
	return currencies, nil
}
