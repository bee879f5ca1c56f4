package user

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/skillforge/skillforge/core"
)

var (
	// password policy
	pwdMinLen     = 8
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdAllNumText = "password cannot be entirely numeric"

	pwdMaxSim      = .7
	pwdAttrSimText = "password cannot be similar to user attributes"
)

// ValidatePassword applies the password policy against the (future) owner's attributes.
func ValidatePassword(pwd string, usr User) error {
	fieldErr := func(text string) error {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: text})
	}

	if len(pwd) < pwdMinLen {
		return fieldErr(pwdMinLenText)
	}

	allNum := true
	for _, r := range pwd {
		if !unicode.IsDigit(r) {
			allNum = false
			break
		}
	}
	if allNum {
		return fieldErr(pwdAllNumText)
	}

	for _, attr := range []string{usr.Name, usr.Username, usr.Email} {
		if attr == "" {
			continue
		}
		if similarity(strings.ToLower(pwd), strings.ToLower(attr)) > pwdMaxSim {
			return fieldErr(pwdAttrSimText)
		}
	}
	return nil
}

func similarity(a, b string) float64 {
	matcher := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return matcher.Ratio()
}
