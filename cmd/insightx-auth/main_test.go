package main

import (
	"context"
	"errors"
	"testing"

	insightx "github.com/Lionel-Logan/InsightX"
	"github.com/Lionel-Logan/InsightX/internal/httpapi"
	"github.com/Lionel-Logan/InsightX/internal/store/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreator struct {
	got postgres.NewUser
	err error
}

func (f *fakeCreator) Create(_ context.Context, in postgres.NewUser) (*insightx.Principal, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &insightx.Principal{ID: "id-1", Username: in.Username, Email: in.Email, Role: in.Role, Active: in.Active}, nil
}

func TestRegisterWithCreatesUnverifiedUser(t *testing.T) {
	users := &fakeCreator{}
	p, err := registerWith(users)(context.Background(), httpapi.Registration{Username: "ada", Email: "ada@example.com", Password: "long-enough"})
	require.NoError(t, err)

	assert.Equal(t, "id-1", p.ID)
	assert.Equal(t, insightx.RoleUser, users.got.Role)
	assert.True(t, users.got.Active)
	assert.False(t, users.got.EmailVerified)
	assert.Equal(t, "long-enough", users.got.Password)
}

func TestRegisterWithMapsDuplicate(t *testing.T) {
	_, err := registerWith(&fakeCreator{err: postgres.ErrDuplicate})(context.Background(), httpapi.Registration{Username: "ada"})
	assert.ErrorIs(t, err, httpapi.ErrAccountExists)

	dbErr := errors.New("db error: down")
	_, err = registerWith(&fakeCreator{err: dbErr})(context.Background(), httpapi.Registration{Username: "ada"})
	assert.ErrorIs(t, err, dbErr)
}
