package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"subtrack-be/internal/dto"
	"subtrack-be/internal/entity"
	"subtrack-be/internal/pkg/logger"
	"subtrack-be/internal/repository/specification"
	"subtrack-be/internal/repository/unitofwork"
)

type IActivityService interface {
	// Record appends one audit entry. It never fails the caller: a storage
	// error is reported and swallowed, because failing a billing operation
	// over a lost log line is the worse trade.
	Record(ctx context.Context, userId uuid.UUID, action entity.ActivityAction, description string, metadata map[string]interface{})

	List(ctx context.Context, userId uuid.UUID, limit, offset int) ([]*dto.ActivityResponse, error)
	ListAll(ctx context.Context, limit, offset int) ([]*dto.ActivityResponse, error)
}

type activityService struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewActivityService(uowFactory unitofwork.RepositoryFactory, logger logger.ILogger) IActivityService {
	return &activityService{
		uowFactory: uowFactory,
		logger:     logger,
	}
}

func (s *activityService) Record(ctx context.Context, userId uuid.UUID, action entity.ActivityAction, description string, metadata map[string]interface{}) {
	if userId == uuid.Nil || action == "" {
		s.logger.Warn("activity", "Dropping activity entry without user id or action", map[string]interface{}{
			"action": string(action),
		})
		return
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	activity := &entity.UserActivity{
		Id:          uuid.New(),
		UserId:      userId,
		Action:      action,
		Description: description,
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	}

	if err := uow.ActivityRepository().Create(ctx, activity); err != nil {
		s.logger.Error("activity", "Failed to record activity", map[string]interface{}{
			"user_id": userId.String(),
			"action":  string(action),
			"error":   err.Error(),
		})
	}
}

func (s *activityService) List(ctx context.Context, userId uuid.UUID, limit, offset int) ([]*dto.ActivityResponse, error) {
	return s.list(ctx, []specification.Specification{
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: normalizeLimit(limit), Offset: offset},
	})
}

func (s *activityService) ListAll(ctx context.Context, limit, offset int) ([]*dto.ActivityResponse, error) {
	return s.list(ctx, []specification.Specification{
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: normalizeLimit(limit), Offset: offset},
	})
}

func (s *activityService) list(ctx context.Context, specs []specification.Specification) ([]*dto.ActivityResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	activities, err := uow.ActivityRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ActivityResponse, 0, len(activities))
	for _, a := range activities {
		res = append(res, &dto.ActivityResponse{
			Id:          a.Id,
			UserId:      a.UserId,
			Action:      string(a.Action),
			Description: a.Description,
			Metadata:    a.Metadata,
			CreatedAt:   a.CreatedAt,
		})
	}
	return res, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
