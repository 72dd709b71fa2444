package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
	"gorm.io/gorm"
)

type plannerDirectory struct {
	db *gorm.DB
}

func (r *plannerDirectory) GetContact(ctx context.Context, plannerID uuid.UUID) (domain.PlannerContact, error) {
	var row plannerModel
	if err := r.db.WithContext(ctx).Where("id = ?", plannerID).Take(&row).Error; err != nil {
		if isNotFound(err) {
			return domain.PlannerContact{}, domain.ErrNotFound
		}
		return domain.PlannerContact{}, err
	}
	return domain.PlannerContact{
		PlannerID:   row.ID,
		Email:       row.Email,
		Phone:       row.Phone,
		DisplayName: row.DisplayName,
	}, nil
}
