package transport

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"mysterybox/internal/oauth"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	states := oauth.NewStateStore(client, 30*time.Second)

	env := newTestEnv(t)
	NewAuthHandler(states, env.tenants, zap.NewNop()).RegisterRoutes(env.router)
	return env
}

func installState(t *testing.T, env *testEnv, shop string) string {
	t.Helper()

	w := env.do("GET", "/auth/install?shop="+url.QueryEscape(shop), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	decodeBody(t, w, &resp)
	require.NotEmpty(t, resp["state"])
	return resp["state"]
}

func TestInstallIssuesState(t *testing.T) {
	env := newAuthEnv(t)

	w := env.do("GET", "/auth/install?shop=new-shop.myshopify.com", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	decodeBody(t, w, &resp)
	assert.Equal(t, "new-shop.myshopify.com", resp["shop"])
	assert.NotEmpty(t, resp["state"])
}

func TestInstallRequiresShopParameter(t *testing.T) {
	env := newAuthEnv(t)

	w := env.do("GET", "/auth/install", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallbackStoresTenantCredentials(t *testing.T) {
	env := newAuthEnv(t)
	state := installState(t, env, "new-shop.myshopify.com")

	w := env.do("GET", "/auth/callback?state="+state+"&token=shpat_fresh", nil)
	require.Equal(t, http.StatusOK, w.Code)

	tenant, err := env.tenants.FindByShopDomain(context.Background(), "new-shop.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "shpat_fresh", tenant.AccessToken)
}

func TestCallbackRejectsReplayedState(t *testing.T) {
	env := newAuthEnv(t)
	state := installState(t, env, "new-shop.myshopify.com")

	w := env.do("GET", "/auth/callback?state="+state+"&token=shpat_fresh", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", "/auth/callback?state="+state+"&token=shpat_replay", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	env := newAuthEnv(t)

	w := env.do("GET", "/auth/callback?state=never-issued&token=shpat_fresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCallbackRejectsShopMismatch(t *testing.T) {
	env := newAuthEnv(t)
	state := installState(t, env, "new-shop.myshopify.com")

	w := env.do("GET", "/auth/callback?state="+state+"&token=shpat_fresh&shop=other-shop.myshopify.com", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCallbackRequiresStateAndToken(t *testing.T) {
	env := newAuthEnv(t)

	w := env.do("GET", "/auth/callback?token=shpat_fresh", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do("GET", "/auth/callback?state=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
