package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"rental-messenger/model"
	"rental-messenger/utils"
)

const key = "middleware-test"

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	m, err := casbinmodel.NewModelFromString(`
[request_definition]
r = sub, obj, act
[policy_definition]
p = sub, obj, act
[policy_effect]
e = some(where (p.eft == allow))
[matchers]
m = r.sub == p.sub && keyMatch(r.obj, p.obj) && regexMatch(r.act, p.act)
`)
	require.NoError(t, err)
	enforcer, err := casbin.NewEnforcer(m)
	require.NoError(t, err)
	_, err = enforcer.AddPolicy("user", "/v1/chat/*", "(GET)")
	require.NoError(t, err)

	app := fiber.New()
	api := app.Group("/v1/chat", JWT(key), RBAC(enforcer))
	api.Get("/unread/:kind/:id", Owner(), func(c *fiber.Ctx) error {
		return c.SendString(Identity(c).String())
	})
	return app
}

func call(t *testing.T, app *fiber.App, path string, identity *model.Identity) int {
	t.Helper()
	r := httptest.NewRequest(fiber.MethodGet, path, nil)
	if identity != nil {
		token, err := utils.GenerateToken(*identity, key, time.Minute)
		require.NoError(t, err)
		r.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(r)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestMiddleware_Chain(t *testing.T) {
	app := newApp(t)
	user := model.NewIdentity(model.KindUser, 4)
	merchant := model.NewIdentity(model.KindMerchant, 4)

	t.Run("missing token", func(t *testing.T) {
		require.Equal(t, fiber.StatusBadRequest, call(t, app, "/v1/chat/unread/user/4", nil))
	})
	t.Run("owner passes", func(t *testing.T) {
		require.Equal(t, fiber.StatusOK, call(t, app, "/v1/chat/unread/user/4", &user))
	})
	t.Run("same id other kind is forbidden", func(t *testing.T) {
		require.Equal(t, fiber.StatusForbidden, call(t, app, "/v1/chat/unread/merchant/4", &user))
	})
	t.Run("bad identity in path", func(t *testing.T) {
		require.Equal(t, fiber.StatusBadRequest, call(t, app, "/v1/chat/unread/admin/4", &user))
	})
	t.Run("kind without policy", func(t *testing.T) {
		require.Equal(t, fiber.StatusForbidden, call(t, app, "/v1/chat/unread/merchant/4", &merchant))
	})
}
