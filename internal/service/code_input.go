package service

import "strings"

// CodeLength is the number of digits in a Telegram login code.
const CodeLength = 5

// CodeInput accumulates login code digits entered on the keypad or read
// from a forwarded service message. It never grows past CodeLength.
type CodeInput struct {
	value string
}

// Append adds one digit. Non-digit input and input past the cap are ignored.
func (c *CodeInput) Append(d rune) {
	if d < '0' || d > '9' {
		return
	}
	if len(c.value) >= CodeLength {
		return
	}
	c.value += string(d)
}

// DeleteLast removes the most recent digit. No-op when empty.
func (c *CodeInput) DeleteLast() {
	if c.value == "" {
		return
	}
	c.value = c.value[:len(c.value)-1]
}

// Set replaces the accumulator with the digits of code, capped at CodeLength.
func (c *CodeInput) Set(code string) {
	c.value = ""
	for _, r := range code {
		c.Append(r)
	}
}

func (c *CodeInput) Reset() {
	c.value = ""
}

func (c *CodeInput) Value() string {
	return c.value
}

func (c *CodeInput) Len() int {
	return len(c.value)
}

func (c *CodeInput) Full() bool {
	return len(c.value) == CodeLength
}

// Masked renders the accumulator for keypad display, one bullet per missing digit.
func (c *CodeInput) Masked() string {
	var b strings.Builder
	for i := 0; i < CodeLength; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i < len(c.value) {
			b.WriteByte(c.value[i])
		} else {
			b.WriteRune('•')
		}
	}
	return b.String()
}
