package metrics

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

func TestResult(t *testing.T) {
	assert.Equal(t, ResultOK, Result(nil))
	assert.Equal(t, ResultInsufficientStock, Result(&domain.InsufficientStockError{}))
	assert.Equal(t, ResultConflict, Result(fmt.Errorf("tx: %w", domain.ErrConflict)))
	assert.Equal(t, ResultInconsistency, Result(&domain.InconsistencyError{}))
	assert.Equal(t, ResultError, Result(errors.New("x")))
}

func TestObserveOperation(t *testing.T) {
	m := New("test")
	m.ObserveOperation("issue", nil, time.Millisecond)
	m.ObserveOperation("issue", domain.ErrConflict, time.Millisecond)
	m.ObserveOperation("issue", domain.ErrConflict, time.Millisecond)
	m.IncConflictRetry("issue")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("issue", ResultOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("issue", ResultConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConflictRetries.WithLabelValues("issue")))
}

func TestMiddleware_UsaRutaDeclarada(t *testing.T) {
	m := New("test")
	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/items/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest("GET", "/items/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/items/:id", "204")))
}
