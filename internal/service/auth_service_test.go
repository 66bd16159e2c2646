// FILE: internal/service/auth_service_test.go
package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"subtrack-be/internal/apperr"
	"subtrack-be/internal/dto"
	"subtrack-be/internal/model"
	"subtrack-be/internal/repository/unitofwork"
	"subtrack-be/internal/testutil"
)

func newAuthForTest(db *gorm.DB) IAuthService {
	factory := unitofwork.NewRepositoryFactory(db)
	activity := NewActivityService(factory, testutil.NopLogger{})
	return NewAuthService(factory, activity)
}

func TestRegisterAndLogin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newAuthForTest(db)
	ctx := context.Background()

	registered, err := svc.Register(ctx, &dto.RegisterRequest{
		Email:    "sam@example.com",
		Password: "correct horse",
		FullName: "Sam Lee",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "sam@example.com", registered.User.Email)
	assert.Equal(t, "user", registered.User.Role)

	// The password never lands in the database in the clear.
	var row model.User
	require.NoError(t, db.First(&row, "email = ?", "sam@example.com").Error)
	require.NotNil(t, row.PasswordHash)
	assert.NotContains(t, *row.PasswordHash, "correct horse")

	loggedIn, err := svc.Login(ctx, &dto.LoginRequest{
		Email:    "sam@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, loggedIn.Token)
	assert.Equal(t, registered.User.Id, loggedIn.User.Id)
}

func TestRegisterDuplicateEmailRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newAuthForTest(db)
	ctx := context.Background()

	req := &dto.RegisterRequest{Email: "sam@example.com", Password: "correct horse", FullName: "Sam Lee"}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	var vErr *apperr.ValidationError
	require.Error(t, err)
	assert.True(t, errors.As(err, &vErr))
}

func TestLoginWrongPasswordRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newAuthForTest(db)
	ctx := context.Background()

	_, err := svc.Register(ctx, &dto.RegisterRequest{
		Email: "sam@example.com", Password: "correct horse", FullName: "Sam Lee",
	})
	require.NoError(t, err)

	cases := []dto.LoginRequest{
		{Email: "sam@example.com", Password: "wrong"},
		{Email: "nobody@example.com", Password: "correct horse"},
	}
	for _, req := range cases {
		_, err := svc.Login(ctx, &req)
		var vErr *apperr.ValidationError
		require.Error(t, err)
		// Unknown email and wrong password are indistinguishable to callers.
		assert.True(t, errors.As(err, &vErr))
	}
}

func TestLoginBlockedUserRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newAuthForTest(db)
	ctx := context.Background()

	_, err := svc.Register(ctx, &dto.RegisterRequest{
		Email: "sam@example.com", Password: "correct horse", FullName: "Sam Lee",
	})
	require.NoError(t, err)

	require.NoError(t, db.Model(&model.User{}).
		Where("email = ?", "sam@example.com").
		Update("status", "blocked").Error)

	_, err = svc.Login(ctx, &dto.LoginRequest{Email: "sam@example.com", Password: "correct horse"})
	var stateErr *apperr.InvalidStateError
	require.Error(t, err)
	assert.True(t, errors.As(err, &stateErr))
}
