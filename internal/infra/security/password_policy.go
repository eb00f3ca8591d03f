package security

import (
	"fmt"
	"strings"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const DefaultMinPasswordLength = 6

// PasswordPolicyError describes a single rejected password rule.
type PasswordPolicyError struct {
	Code    string
	Message string
}

func (e *PasswordPolicyError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordPolicy enforces a minimum length and, when MinStrength > 0, a
// minimum zxcvbn score computed against the account's own name and email.
type PasswordPolicy struct {
	MinLength   int
	MinStrength int
}

// Validate returns a *PasswordPolicyError for the first failing rule.
func (p PasswordPolicy) Validate(password string, userInputs ...string) error {
	minLength := p.MinLength
	if minLength <= 0 {
		minLength = DefaultMinPasswordLength
	}
	if len([]rune(password)) < minLength {
		return &PasswordPolicyError{
			Code:    "min_length",
			Message: fmt.Sprintf("password must be at least %d characters long", minLength),
		}
	}

	if p.MinStrength <= 0 {
		return nil
	}
	minScore := min(p.MinStrength, 4)

	inputs := make([]string, 0, len(userInputs))
	for _, in := range userInputs {
		if in = strings.TrimSpace(in); in != "" {
			inputs = append(inputs, in)
		}
	}
	if zxcvbn.PasswordStrength(password, inputs).Score < minScore {
		return &PasswordPolicyError{
			Code:    "weak_password",
			Message: "password is too weak; choose a more complex value",
		}
	}
	return nil
}
