package service

// CreateUserInput is a validated create request.
type CreateUserInput struct {
	Username string
	Email    string
}

// ValidateCreateUser checks the shape of a create request.
//
// A nil username means the key was absent, which covers the empty payload.
// Email presence is not checked here: a missing email is passed on as ""
// and rejected by the users table, which reports it as ErrInvalidPayload
// from CreateUser. Values are returned as given, with no trimming or format
// checks.
func ValidateCreateUser(username, email *string) (CreateUserInput, error) {
	if username == nil {
		return CreateUserInput{}, ErrInvalidPayload
	}

	input := CreateUserInput{Username: *username}
	if email != nil {
		input.Email = *email
	}

	return input, nil
}
