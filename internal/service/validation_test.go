package service

import (
	"errors"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestValidateCreateUser(t *testing.T) {
	tests := []struct {
		name     string
		username *string
		email    *string
		want     CreateUserInput
		wantErr  error
	}{
		{"empty_payload", nil, nil, CreateUserInput{}, ErrInvalidPayload},
		{"missing_username", nil, strPtr("jaime@mail.com"), CreateUserInput{}, ErrInvalidPayload},
		{"missing_email_passes", strPtr("jaime"), nil, CreateUserInput{Username: "jaime"}, nil},
		{"valid", strPtr("jaime"), strPtr("jaime@mail.com"), CreateUserInput{Username: "jaime", Email: "jaime@mail.com"}, nil},
		{"values_unmodified", strPtr("  Jaime "), strPtr("not-an-email"), CreateUserInput{Username: "  Jaime ", Email: "not-an-email"}, nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ValidateCreateUser(test.username, test.email)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("expected %v, got %v", test.wantErr, err)
			}
			if got != test.want {
				t.Fatalf("expected %+v, got %+v", test.want, got)
			}
		})
	}
}
