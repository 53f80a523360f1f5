package domain

import (
	"strconv"
	"strings"
)

const (
	ReplyEven       = "even"
	ReplyOdd        = "odd"
	ReplyNotANumber = "not a number"
)

// OddEven computes the reply to a received payload. It is total: any text
// that is not a signed 64-bit integer, surrounding whitespace aside, gets
// ReplyNotANumber.
func OddEven(text string) string {
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return ReplyNotANumber
	}
	if n%2 == 0 {
		return ReplyEven
	}
	return ReplyOdd
}
