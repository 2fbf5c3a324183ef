package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/student-portal-api/internal/models"
	"github.com/noah-isme/student-portal-api/internal/policy"
	appErrors "github.com/noah-isme/student-portal-api/pkg/errors"
)

type counselorRepository interface {
	List(ctx context.Context, filter models.CounselorMessageFilter) ([]models.CounselorMessage, int, error)
	Create(ctx context.Context, message *models.CounselorMessage) error
}

// CounselorService handles the counselor inbox.
type CounselorService struct {
	repo      counselorRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCounselorService constructs the service.
func NewCounselorService(repo counselorRepository, validate *validator.Validate, logger *zap.Logger) *CounselorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CounselorService{repo: repo, validator: validate, logger: logger}
}

// Send stores a message from any signed-in user. A blank name falls back to the account name.
func (s *CounselorService) Send(ctx context.Context, req models.SendCounselorMessageRequest, claims *models.JWTClaims) (*models.CounselorMessage, error) {
	if err := authorize(claims, policy.ActionSendCounselorMessage); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Message = strings.TrimSpace(req.Message)
	if req.Name == "" {
		req.Name = claims.Name
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid counselor message")
	}
	if req.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}

	senderID := claims.UserID
	message := &models.CounselorMessage{SenderID: &senderID, Name: req.Name, Message: req.Message}
	if err := s.repo.Create(ctx, message); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}
	s.logger.Info("counselor message received", zap.String("message_id", message.ID), zap.String("sender_id", senderID))
	return message, nil
}

// List pages through the inbox, newest first. Staff only.
func (s *CounselorService) List(ctx context.Context, page, pageSize int, claims *models.JWTClaims) ([]models.CounselorMessage, *models.Pagination, error) {
	if err := authorize(claims, policy.ActionViewCounselorMessages); err != nil {
		return nil, nil, err
	}
	filter := models.CounselorMessageFilter{Page: page, PageSize: pageSize}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list counselor messages")
	}
	return rows, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}
