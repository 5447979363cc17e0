package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func status(t *testing.T, app *fiber.App, headers map[string]string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func ok(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) }

func TestGatewayAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/", GatewayAuthMiddleware("s3cret"), ok)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"wrong", "Bearer nope", fiber.StatusUnauthorized},
		{"bearer", "Bearer s3cret", fiber.StatusNoContent},
		{"raw", "s3cret", fiber.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := map[string]string{}
			if tc.header != "" {
				h[fiber.HeaderAuthorization] = tc.header
			}
			if got := status(t, app, h); got != tc.want {
				t.Fatalf("status = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestGatewayAuthDisabledWithoutToken(t *testing.T) {
	app := fiber.New()
	app.Get("/", GatewayAuthMiddleware(""), ok)
	if got := status(t, app, nil); got != fiber.StatusNoContent {
		t.Fatalf("status = %d, want pass-through", got)
	}
}

func TestUserContextAndRequireRole(t *testing.T) {
	app := fiber.New()
	var seen []string
	app.Get("/", UserContextMiddleware(), RequireRole("organizer", "admin"), func(c *fiber.Ctx) error {
		seen, _ = c.Locals(LocalUserRoles).([]string)
		return ok(c)
	})

	if got := status(t, app, map[string]string{"X-User-Roles": "admin"}); got != fiber.StatusUnauthorized {
		t.Fatalf("no user id: status = %d", got)
	}
	if got := status(t, app, map[string]string{"X-User-ID": "u-1", "X-User-Roles": "student"}); got != fiber.StatusForbidden {
		t.Fatalf("student: status = %d", got)
	}
	if got := status(t, app, map[string]string{"X-User-ID": "u-1", "X-User-Roles": "student, ADMIN"}); got != fiber.StatusNoContent {
		t.Fatalf("admin: status = %d", got)
	}
	if !reflect.DeepEqual(seen, []string{"student", "admin"}) {
		t.Fatalf("roles = %v", seen)
	}
}

func TestParseRoles(t *testing.T) {
	if got := ParseRoles(""); len(got) != 0 {
		t.Fatalf("ParseRoles(\"\") = %v", got)
	}
	if got := ParseRoles(" Organizer ,,admin, "); !reflect.DeepEqual(got, []string{"organizer", "admin"}) {
		t.Fatalf("ParseRoles = %v", got)
	}
}

func TestRateLimiterPerKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, LimiterConfig{RPS: 0.001, Burst: 1})

	if !rl.getLimiter("a").Allow() {
		t.Fatalf("first request for a rejected")
	}
	if rl.getLimiter("a").Allow() {
		t.Fatalf("second request for a allowed")
	}
	if !rl.getLimiter("b").Allow() {
		t.Fatalf("b shares a's bucket")
	}
}

func TestRateLimiterEvictsIdleBuckets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, LimiterConfig{RPS: 1, Burst: 1, IdleTTL: time.Hour})

	rl.getLimiter("a")
	rl.evict(time.Now().Add(2 * time.Hour))

	rl.mu.Lock()
	n := len(rl.buckets)
	rl.mu.Unlock()
	if n != 0 {
		t.Fatalf("%d bucket(s) left after eviction", n)
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, LimiterConfig{RPS: 0.001, Burst: 1})

	app := fiber.New()
	app.Get("/", rl.Middleware(), ok)
	if got := status(t, app, nil); got != fiber.StatusNoContent {
		t.Fatalf("first: %d", got)
	}
	if got := status(t, app, nil); got != fiber.StatusTooManyRequests {
		t.Fatalf("second: %d, want 429", got)
	}
}
