package mapper

import (
	"encoding/json"

	"gorm.io/datatypes"

	"subtrack-be/internal/entity"
	"subtrack-be/internal/model"
)

type ActivityMapper struct{}

func NewActivityMapper() *ActivityMapper {
	return &ActivityMapper{}
}

func (m *ActivityMapper) ToEntity(a *model.UserActivity) *entity.UserActivity {
	if a == nil {
		return nil
	}

	var metadata map[string]interface{}
	if len(a.Metadata) > 0 {
		// Best-effort: a malformed jsonb blob should not break the audit feed.
		_ = json.Unmarshal(a.Metadata, &metadata)
	}

	return &entity.UserActivity{
		Id:          a.Id,
		UserId:      a.UserId,
		Action:      entity.ActivityAction(a.Action),
		Description: a.Description,
		Metadata:    metadata,
		CreatedAt:   a.CreatedAt,
	}
}

func (m *ActivityMapper) ToEntities(activities []*model.UserActivity) []*entity.UserActivity {
	entities := make([]*entity.UserActivity, 0, len(activities))
	for _, a := range activities {
		entities = append(entities, m.ToEntity(a))
	}
	return entities
}

func (m *ActivityMapper) ToModel(a *entity.UserActivity) *model.UserActivity {
	if a == nil {
		return nil
	}

	var metadata datatypes.JSON
	if a.Metadata != nil {
		if raw, err := json.Marshal(a.Metadata); err == nil {
			metadata = raw
		}
	}

	return &model.UserActivity{
		Id:          a.Id,
		UserId:      a.UserId,
		Action:      string(a.Action),
		Description: a.Description,
		Metadata:    metadata,
		CreatedAt:   a.CreatedAt,
	}
}
