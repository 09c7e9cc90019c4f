package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront/internal/identity"
	"github.com/iliyamo/storefront/internal/rpc"
)

func TestCreateAccountTwiceConflicts(t *testing.T) {
	svc := NewAuthService(newFakeStore())
	ctx := context.Background()

	out, err := svc.CreateAccount(ctx, rpc.Credentials{Email: "x@y.com", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, rpc.CreateAccountOutput{Success: true, SendToEmail: "x@y.com"}, out)

	_, err = svc.CreateAccount(ctx, rpc.Credentials{Email: "x@y.com", Password: "longenough"})
	assert.Equal(t, rpc.CodeConflict, rpc.CodeOf(err))
}

func TestCreateAccountConflictFromUniqueIndex(t *testing.T) {
	store := newFakeStore()
	svc := NewAuthService(store)
	_, err := svc.CreateAccount(context.Background(), rpc.Credentials{Email: "x@y.com", Password: "longenough"})
	require.NoError(t, err)

	store.hideLookup = true
	_, err = svc.CreateAccount(context.Background(), rpc.Credentials{Email: "x@y.com", Password: "longenough"})
	assert.Equal(t, rpc.CodeConflict, rpc.CodeOf(err))
	assert.ErrorIs(t, err, identity.ErrEmailExists)
}

func TestCreateAccountValidatesBeforeStore(t *testing.T) {
	store := newFakeStore()
	svc := NewAuthService(store)

	_, err := svc.CreateAccount(context.Background(), rpc.Credentials{Email: "nope", Password: "short"})
	rerr := rpc.From(err)
	require.NotNil(t, rerr)
	assert.Equal(t, rpc.CodeBadRequest, rerr.Code)
	assert.Len(t, rerr.Issues, 2)
	assert.Equal(t, 0, store.calls)
}

func TestCreateAccountStoreFailureIsInternal(t *testing.T) {
	store := newFakeStore()
	store.createErr = errBoom
	_, err := NewAuthService(store).CreateAccount(context.Background(), rpc.Credentials{Email: "x@y.com", Password: "longenough"})
	assert.Equal(t, rpc.CodeInternal, rpc.CodeOf(err))
	assert.ErrorIs(t, err, errBoom)
}

func TestVerifyEmail(t *testing.T) {
	store := newFakeStore()
	store.verifyOK["good"] = true
	svc := NewAuthService(store)

	out, err := svc.VerifyEmail(context.Background(), "good")
	require.NoError(t, err)
	assert.True(t, out.Success)

	_, err = svc.VerifyEmail(context.Background(), "good")
	assert.Equal(t, rpc.CodeUnauthorized, rpc.CodeOf(err))
}

func TestSignInNormalisesEveryFailure(t *testing.T) {
	store := newFakeStore()
	svc := NewAuthService(store)
	ctx := context.Background()
	_, err := svc.CreateAccount(ctx, rpc.Credentials{Email: "x@y.com", Password: "longenough"})
	require.NoError(t, err)

	sess, err := svc.SignIn(ctx, rpc.Credentials{Email: "X@y.com ", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, "access", sess.Access.Token)

	cases := map[string]rpc.Credentials{
		"wrong password": {Email: "x@y.com", Password: "wrong-password"},
		"unknown email":  {Email: "ghost@y.com", Password: "longenough"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.SignIn(ctx, in)
			assert.Equal(t, rpc.CodeUnauthorized, rpc.CodeOf(err))
		})
	}

	store.loginErr = errBoom
	_, err = svc.SignIn(ctx, rpc.Credentials{Email: "x@y.com", Password: "longenough"})
	rerr := rpc.From(err)
	assert.Equal(t, rpc.CodeUnauthorized, rerr.Code)
	assert.Equal(t, "invalid email or password", rerr.Message)
	assert.ErrorIs(t, err, errBoom, "cause is kept for logs")
}

func TestSignInRejectsMalformedInput(t *testing.T) {
	store := newFakeStore()
	_, err := NewAuthService(store).SignIn(context.Background(), rpc.Credentials{Email: "x", Password: ""})
	rerr := rpc.From(err)
	require.NotNil(t, rerr)
	assert.Equal(t, rpc.CodeBadRequest, rerr.Code)
	assert.Len(t, rerr.Issues, 2)
	assert.Equal(t, 0, store.calls)
}

func TestCreateAccountEchoesTypedEmail(t *testing.T) {
	store := newFakeStore()
	svc := NewAuthService(store)
	ctx := context.Background()

	out, err := svc.CreateAccount(ctx, rpc.Credentials{Email: "New.User@Y.com", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, "New.User@Y.com", out.SendToEmail)

	_, found, err := store.FindByEmail(ctx, "new.user@y.com")
	require.NoError(t, err)
	assert.True(t, found, "stored under the normalised address")
}

func TestRefreshSignOutMe(t *testing.T) {
	store := newFakeStore()
	svc := NewAuthService(store)
	ctx := context.Background()

	sess, err := svc.Refresh(ctx, "refresh")
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", sess.Refresh.Raw)
	_, err = svc.Refresh(ctx, "stale")
	assert.Equal(t, rpc.CodeUnauthorized, rpc.CodeOf(err))

	out, err := svc.SignOut(ctx, "refresh")
	require.NoError(t, err)
	assert.True(t, out.Success)

	_, err = svc.CreateAccount(ctx, rpc.Credentials{Email: "x@y.com", Password: "longenough"})
	require.NoError(t, err)
	me, err := svc.Me(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, rpc.MeOutput{ID: 1, Email: "x@y.com", Role: "user"}, me)

	_, err = svc.Me(ctx, 99)
	assert.Equal(t, rpc.CodeUnauthorized, rpc.CodeOf(err))
}
