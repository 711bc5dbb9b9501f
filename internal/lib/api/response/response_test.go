package response

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

func TestValidationErrorListsEveryField(t *testing.T) {
	err := validator.New().Struct(signupForm{Email: "not-an-email", Password: "abc"})
	require.Error(t, err)

	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	resp := ValidationError(verrs)

	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "field Email is not a valid email")
	assert.Contains(t, resp.Error, "field Password must be at least 6 characters")
}

func TestOKAndError(t *testing.T) {
	assert.Equal(t, Response{Status: StatusOK}, OK())
	assert.Equal(t, Response{Status: StatusError, Error: "boom"}, Error("boom"))
}
