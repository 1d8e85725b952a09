package term

import (
	"unicode/utf8"
)

// Code classifies a key event.
type Code int

const (
	KeyUnknown Code = iota
	KeyRune
	KeyEsc
	KeyEnter
	KeyCtrlC
	KeyUp
	KeyDown
	KeyRight
	KeyLeft
)

// Key is one decoded key press. Rune is set only for KeyRune.
type Key struct {
	Code Code
	Rune rune
}

// IsRune reports whether k is a printable key matching any of rs.
func (k Key) IsRune(rs ...rune) bool {
	if k.Code != KeyRune {
		return false
	}
	for _, r := range rs {
		if k.Rune == r {
			return true
		}
	}
	return false
}

const (
	byteEsc    = 0x1b
	byteCtrlC  = 0x03
	byteCR     = '\r'
	byteLF     = '\n'
	byteDelete = 0x7f
)

var arrows = map[byte]Code{
	'A': KeyUp,
	'B': KeyDown,
	'C': KeyRight,
	'D': KeyLeft,
}

// Decode splits raw terminal input into key events.
// A lone ESC is the escape key; ESC [ X and ESC O X are arrow keys.
// Decode sees only buf, so a sequence cut at its end decodes as ESC plus runes;
// Keyboard holds such a tail back with splitEscape until the rest arrives.
func Decode(buf []byte) []Key {
	var keys []Key
	for i := 0; i < len(buf); {
		b := buf[i]
		switch {
		case b == byteEsc:
			if i+2 < len(buf) && (buf[i+1] == '[' || buf[i+1] == 'O') {
				code, ok := arrows[buf[i+2]]
				if !ok {
					code = KeyUnknown
				}
				keys = append(keys, Key{Code: code})
				i += 3
				continue
			}
			keys = append(keys, Key{Code: KeyEsc})
			i++
		case b == byteCR || b == byteLF:
			keys = append(keys, Key{Code: KeyEnter})
			i++
		case b == byteCtrlC:
			keys = append(keys, Key{Code: KeyCtrlC})
			i++
		case b < 0x20 || b == byteDelete:
			keys = append(keys, Key{Code: KeyUnknown})
			i++
		default:
			r, size := utf8.DecodeRune(buf[i:])
			if r == utf8.RuneError {
				keys = append(keys, Key{Code: KeyUnknown})
			} else {
				keys = append(keys, Key{Code: KeyRune, Rune: r})
			}
			i += size
		}
	}
	return keys
}

// splitEscape separates a trailing, possibly unfinished escape sequence
// ("ESC", "ESC [" or "ESC O") from the complete input before it.
func splitEscape(buf []byte) (complete, tail []byte) {
	n := len(buf)
	switch {
	case n >= 1 && buf[n-1] == byteEsc:
		return buf[:n-1], buf[n-1:]
	case n >= 2 && buf[n-2] == byteEsc && (buf[n-1] == '[' || buf[n-1] == 'O'):
		return buf[:n-2], buf[n-2:]
	}
	return buf, nil
}
