package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email string `validate:"required,email"`
	Role  string `validate:"omitempty,oneof=user employee"`
	Name  string `validate:"max=3"`
}

func TestValidationError(t *testing.T) {
	err := validator.New().Struct(sample{Role: "admin", Name: "longer"})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "field Email is a required field")
	assert.Contains(t, resp.Error, "field Role must be one of [user employee]")
	assert.Contains(t, resp.Error, "field Name must be at most 3 characters")
}

func TestFail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Fail(rec, req, http.StatusConflict, "letter is not ready")

	assert.Equal(t, http.StatusConflict, rec.Code)
	var got map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "Error", got["status"])
	assert.Equal(t, "letter is not ready", got["error"])
}

func TestInvalid(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	Invalid(rec, req, validator.New().Struct(sample{}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "field Email is a required field")
}
