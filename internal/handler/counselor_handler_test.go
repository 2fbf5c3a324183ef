package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-portal-api/internal/middleware"
	"github.com/noah-isme/student-portal-api/internal/models"
	appErrors "github.com/noah-isme/student-portal-api/pkg/errors"
)

type fakeCounselorSrv struct {
	sent     []models.SendCounselorMessageRequest
	page     int
	pageSize int
	err      error
}

func (f *fakeCounselorSrv) Send(_ context.Context, req models.SendCounselorMessageRequest, _ *models.JWTClaims) (*models.CounselorMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, req)
	return &models.CounselorMessage{ID: "msg-1", Name: req.Name, Message: req.Message}, nil
}

func (f *fakeCounselorSrv) List(_ context.Context, page, pageSize int, _ *models.JWTClaims) ([]models.CounselorMessage, *models.Pagination, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.page, f.pageSize = page, pageSize
	return []models.CounselorMessage{{ID: "msg-1", Name: "Sam", Message: "hello"}}, &models.Pagination{Page: 2, PageSize: 5, TotalCount: 6}, nil
}

func TestCounselorHandlerSendFromForm(t *testing.T) {
	srv := &fakeCounselorSrv{}
	handler := NewCounselorHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/counselor-messages", teacher)
	c.Request.Body = ioNopCloser("name=Sam&message=Need+advice")
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	handler.Send(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, srv.sent, 1)
	assert.Equal(t, "Need advice", srv.sent[0].Message)
	assert.Equal(t, "msg-1", c.GetString(middleware.AuditResourceKey))
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "Message sent successfully!", envelope.Meta["message"])
}

func TestCounselorHandlerSendServiceError(t *testing.T) {
	handler := NewCounselorHandler(&fakeCounselorSrv{err: appErrors.Clone(appErrors.ErrValidation, "invalid counselor message")})
	c, rec := newTestContext(http.MethodPost, "/counselor-messages", teacher)
	c.Request.Body = ioNopCloser(`{"message":""}`)
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Send(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid counselor message")
}

func TestCounselorHandlerListPaged(t *testing.T) {
	srv := &fakeCounselorSrv{}
	handler := NewCounselorHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/counselor-messages?page=2&page_size=5", teacher)

	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, srv.page)
	assert.Equal(t, 5, srv.pageSize)
	assert.Contains(t, rec.Body.String(), `"total_count":6`)
}

func TestCounselorHandlerListRejectsBadPaging(t *testing.T) {
	handler := NewCounselorHandler(&fakeCounselorSrv{})
	c, rec := newTestContext(http.MethodGet, "/counselor-messages?page_size=500", teacher)

	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
