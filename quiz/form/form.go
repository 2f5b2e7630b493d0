// Package form holds the join form state: a nickname and a game PIN.
package form

import (
	"strings"
	"unicode/utf16"
)

const (
	// MaxNicknameLength is the input limit for nicknames, in UTF-16 code
	// units as browsers count them. Characters outside the BMP take two.
	MaxNicknameLength = 15
	// PINLength is the exact number of digits in a game PIN.
	PINLength = 8
)

// ValidationError is a user-facing validation failure. Message is shown to the
// user verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var (
	ErrInvalidPIN      = &ValidationError{Field: "pin", Message: "Game PIN must be 8 digits!"}
	ErrInvalidNickname = &ValidationError{Field: "nickname", Message: "Please enter a valid nickname"}
)

// Form is the join form. The zero value is an empty form.
type Form struct {
	nickname string
	pin      string
}

// Nickname returns the stored nickname exactly as entered.
func (f *Form) Nickname() string { return f.nickname }

// PIN returns the stored PIN. It only ever contains ASCII digits.
func (f *Form) PIN() string { return f.pin }

// SetNickname stores value, cut to MaxNicknameLength code units. A character
// that would straddle the limit is dropped whole.
func (f *Form) SetNickname(value string) {
	f.nickname = truncateUTF16(value, MaxNicknameLength)
}

// SetPIN stores the digits of value, in order, cut to PINLength.
func (f *Form) SetPIN(value string) {
	f.pin = FilterPIN(value)
}

// CanSubmit reports whether the submit control is enabled.
func (f *Form) CanSubmit() bool {
	return len(f.pin) == PINLength && strings.TrimSpace(f.nickname) != ""
}

// Validate checks the PIN first, then the nickname.
func (f *Form) Validate() error {
	if len(f.pin) != PINLength {
		return ErrInvalidPIN
	}
	if strings.TrimSpace(f.nickname) == "" {
		return ErrInvalidNickname
	}
	return nil
}

// Reset empties both fields.
func (f *Form) Reset() {
	f.nickname = ""
	f.pin = ""
}

// FilterPIN drops every character that is not 0-9 and keeps at most PINLength
// digits.
func FilterPIN(value string) string {
	var b strings.Builder
	b.Grow(PINLength)
	for i := 0; i < len(value) && b.Len() < PINLength; i++ {
		if c := value[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func truncateUTF16(s string, n int) string {
	units := 0
	for pos, r := range s {
		w := utf16.RuneLen(r)
		if units+w > n {
			return s[:pos]
		}
		units += w
	}
	return s
}
