package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/fundstransfer/internal/logging"
)

type idempotencyHarness struct {
	app   *fiber.App
	calls int
	fail  bool
}

func newIdempotencyHarness(t *testing.T) *idempotencyHarness {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})

	h := &idempotencyHarness{app: fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})}
	h.app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", c.Get("X-User"))
		return c.Next()
	})
	h.app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	h.app.Post("/transfer", func(c *fiber.Ctx) error {
		h.calls++
		if h.fail {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "insufficient funds")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"call": h.calls})
	})
	return h
}

func (h *idempotencyHarness) post(t *testing.T, user, key, body string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/transfer", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-User", user)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := h.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	return resp, string(payload)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	h := newIdempotencyHarness(t)

	resp, _ := h.post(t, "alice", "", "{}")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, resp.StatusCode)
	}
	if h.calls != 0 {
		t.Fatalf("handler must not run without a key")
	}
}

func TestIdempotencyReplaysSuccess(t *testing.T) {
	h := newIdempotencyHarness(t)

	first, firstBody := h.post(t, "alice", "abc123", `{"amount":10}`)
	second, secondBody := h.post(t, "alice", "abc123", `{"amount":10}`)

	if first.StatusCode != fiber.StatusOK || second.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected statuses %d, %d", first.StatusCode, second.StatusCode)
	}
	if secondBody != firstBody {
		t.Fatalf("expected replayed body %s got %s", firstBody, secondBody)
	}
	if second.Header.Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay marker on second response")
	}
	if second.Header.Get(fiber.HeaderContentType) != fiber.MIMEApplicationJSON {
		t.Fatalf("expected content type to be replayed, got %q", second.Header.Get(fiber.HeaderContentType))
	}
	if h.calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", h.calls)
	}
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	h := newIdempotencyHarness(t)

	h.post(t, "alice", "shared", `{}`)
	_, body := h.post(t, "bob", "shared", `{}`)
	if body != `{"call":2}` {
		t.Fatalf("expected bob's request to run, got %s", body)
	}
}

func TestIdempotencyRejectsDifferentPayload(t *testing.T) {
	h := newIdempotencyHarness(t)

	h.post(t, "alice", "k1", `{"amount":10}`)
	resp, _ := h.post(t, "alice", "k1", `{"amount":99}`)
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.StatusCode)
	}
	if h.calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", h.calls)
	}
}

func TestIdempotencyDoesNotReplayFailures(t *testing.T) {
	h := newIdempotencyHarness(t)

	h.fail = true
	resp, _ := h.post(t, "alice", "retry-me", `{}`)
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.StatusCode)
	}

	h.fail = false
	resp, _ = h.post(t, "alice", "retry-me", `{}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected retry to succeed, got %d", resp.StatusCode)
	}
	if h.calls != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", h.calls)
	}
}
