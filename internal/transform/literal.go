package transform

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/jward/svtree/internal/node"
)

func malformed(kind, raw string) error {
	return &node.ValidationError{Node: node.TypeLiteral, Reason: fmt.Sprintf("malformed %s %s", kind, raw)}
}

// parseNumber converts a numeric literal token to its float64 value.
// ok is false for BigInt literals, which have no Literal form.
func parseNumber(raw string) (v float64, ok bool, err error) {
	if strings.HasSuffix(raw, "n") {
		return 0, false, nil
	}
	s := strings.ReplaceAll(raw, "_", "")
	if len(s) > 1 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		default:
			if legacyOctal(s[1:]) {
				s, base = "0o"+s[1:], 8
			}
		}
		if base != 0 {
			i, good := new(big.Int).SetString(s[2:], base)
			if !good {
				return 0, false, malformed("number", raw)
			}
			f, _ := new(big.Float).SetInt(i).Float64()
			return f, true, nil
		}
	}
	f, perr := strconv.ParseFloat(s, 64)
	if perr != nil {
		// Out-of-range decimals round to ±Inf or 0 like the language does.
		if errors.Is(perr, strconv.ErrRange) {
			return f, true, nil
		}
		return 0, false, malformed("number", raw)
	}
	return f, true, nil
}

// legacyOctal reports whether digits is a sloppy-mode octal literal body
// such as the "17" of 017.
func legacyOctal(digits string) bool {
	if digits == "" {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '7' {
			return false
		}
	}
	return true
}

// unquote decodes a quoted string literal including its escape sequences.
func unquote(raw string) (string, error) {
	if len(raw) < 2 || (raw[0] != '"' && raw[0] != '\'') || raw[len(raw)-1] != raw[0] {
		return "", malformed("string", raw)
	}
	body := raw[1 : len(raw)-1]
	if !strings.Contains(body, `\`) {
		return body, nil
	}

	var b strings.Builder
	var high rune = -1 // pending UTF-16 high surrogate
	flush := func() {
		if high >= 0 {
			b.WriteRune(utf8.RuneError)
			high = -1
		}
	}
	writeUnit := func(r rune) {
		switch {
		case utf16.IsSurrogate(r) && r < 0xDC00:
			flush()
			high = r
		case utf16.IsSurrogate(r) && high >= 0:
			b.WriteRune(utf16.DecodeRune(high, r))
			high = -1
		default:
			flush()
			b.WriteRune(r)
		}
	}

	for i := 0; i < len(body); {
		c := body[i]
		if c != '\\' {
			flush()
			r, size := utf8.DecodeRuneInString(body[i:])
			b.WriteRune(r)
			i += size
			continue
		}
		if i+1 >= len(body) {
			return "", malformed("string", raw)
		}
		e := body[i+1]
		i += 2
		switch e {
		case 'n':
			writeUnit('\n')
		case 't':
			writeUnit('\t')
		case 'r':
			writeUnit('\r')
		case 'b':
			writeUnit('\b')
		case 'f':
			writeUnit('\f')
		case 'v':
			writeUnit('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			// Legacy octal escape: up to three digits, at most \377.
			v := rune(e - '0')
			limit := 2
			if e > '3' {
				limit = 1
			}
			for ; limit > 0 && i < len(body) && body[i] >= '0' && body[i] <= '7'; limit-- {
				v = v*8 + rune(body[i]-'0')
				i++
			}
			writeUnit(v)
		case '\n':
			// line continuation
		case '\r':
			if i < len(body) && body[i] == '\n' {
				i++
			}
		case 'x':
			if i+2 > len(body) {
				return "", malformed("string", raw)
			}
			v, err := strconv.ParseUint(body[i:i+2], 16, 8)
			if err != nil {
				return "", malformed("string", raw)
			}
			writeUnit(rune(v))
			i += 2
		case 'u':
			var hex string
			if i < len(body) && body[i] == '{' {
				end := strings.IndexByte(body[i:], '}')
				if end < 0 {
					return "", malformed("string", raw)
				}
				hex, i = body[i+1:i+end], i+end+1
			} else {
				if i+4 > len(body) {
					return "", malformed("string", raw)
				}
				hex, i = body[i:i+4], i+4
			}
			v, err := strconv.ParseUint(hex, 16, 32)
			if err != nil || v > utf8.MaxRune {
				return "", malformed("string", raw)
			}
			writeUnit(rune(v))
		default:
			// Any other escaped character stands for itself.
			r, size := utf8.DecodeRuneInString(body[i-1:])
			writeUnit(r)
			i += size - 1
		}
	}
	flush()
	return b.String(), nil
}
