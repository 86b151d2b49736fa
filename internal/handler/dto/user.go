// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import "github.com/dco5/users-service/internal/model"

// Response status values.
const (
	StatusSuccess = "success"
	StatusFail    = "fail"
)

// CreateUserRequest represents the request body for creating a user.
// Pointers distinguish an absent key from an empty string.
type CreateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

// UserResponse is the serialized form of a user.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Active   bool   `json:"active"`
}

// UserListData wraps a list of users under the "users" key.
type UserListData struct {
	Users []UserResponse `json:"users"`
}

// Response is the envelope of every JSON API response.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ToUserResponse converts a User model to UserResponse DTO.
func ToUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Active:   user.Active,
	}
}

// ToUserListData converts users to the list payload, preserving order.
func ToUserListData(users []*model.User) UserListData {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, ToUserResponse(u))
	}
	return UserListData{Users: out}
}

// Success builds a success envelope.
func Success(message string, data any) Response {
	return Response{Status: StatusSuccess, Message: message, Data: data}
}

// Fail builds a failure envelope.
func Fail(message string) Response {
	return Response{Status: StatusFail, Message: message}
}
