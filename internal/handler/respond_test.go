package handler

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{port.CodeValidation, fiber.StatusBadRequest},
		{port.CodeIntegrity, fiber.StatusBadRequest},
		{port.CodePlatformAuth, fiber.StatusBadRequest},
		{port.CodePermission, fiber.StatusForbidden},
		{port.CodeNotFound, fiber.StatusNotFound},
		{port.CodePlatformNotFound, fiber.StatusNotFound},
		{port.CodeConflict, fiber.StatusConflict},
		{port.CodePlatformRateLimit, fiber.StatusTooManyRequests},
		{port.CodePlatformTimeout, fiber.StatusBadGateway},
		{port.CodePlatformServer, fiber.StatusBadGateway},
		{port.CodePlatform, fiber.StatusBadGateway},
		{"something_else", fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusForCode(tt.code), tt.code)
	}
}

func TestFailEnvelope(t *testing.T) {
	app := fiber.New()
	app.Get("/typed", func(c fiber.Ctx) error {
		return fail(c, port.Conflictf("commit is already mapped"))
	})
	app.Get("/untyped", func(c fiber.Ctx) error {
		return fail(c, errors.New("pq: connection refused"))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/typed", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "conflict", body.Error.Code)
	assert.Equal(t, "commit is already mapped", body.Error.Message)

	// Untyped errors never leak their message.
	resp, err = app.Test(httptest.NewRequest("GET", "/untyped", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "internal_error", body.Error.Code)
	assert.NotContains(t, body.Error.Message, "pq:")
}
