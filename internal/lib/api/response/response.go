package response

import (
	"fmt"
	"strings"
	"time"

	"messenger_auth/internal/models"

	"github.com/go-playground/validator/v10"
)

type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

func OK() Response {
	return Response{
		Status: StatusOK,
	}
}

func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is not a valid email", err.Field()))
		case "min":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s must be at least %s characters", err.Field(), err.Param()))
		case "max":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s must be at most %s characters", err.Field(), err.Param()))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}

	return Response{
		Status: StatusError,
		Error:  strings.Join(errMsgs, ", "),
	}
}

const TokenTypeBearer = "bearer"

type Tokens struct {
	Response
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func TokenPair(accessToken, refreshToken string) Tokens {
	return Tokens{
		Response:     OK(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    TokenTypeBearer,
	}
}

// User is the public view of an account. Secrets never leave the service.
type User struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	Confirmed        bool      `json:"confirmed"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	Avatar           string    `json:"avatar,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func UserView(acc models.Account) User {
	return User{
		ID:               acc.ID,
		Username:         acc.Username,
		Email:            acc.Email,
		Confirmed:        acc.Confirmed,
		TwoFactorEnabled: acc.TwoFactorEnabled(),
		Avatar:           acc.Avatar,
		CreatedAt:        acc.CreatedAt,
	}
}
