package term

import (
	"strings"
)

// screen replays printer output the way a terminal would and returns the visible lines.
func screen(out string) []string {
	lines := []string{""}
	col := 0
	for i := 0; i < len(out); {
		switch {
		case strings.HasPrefix(out[i:], "\x1b[2K"):
			lines[len(lines)-1] = ""
			i += len("\x1b[2K")
			continue
		case out[i] == '\r':
			col = 0
		case out[i] == '\n':
			lines = append(lines, "")
			col = 0
		case out[i] == '\a':
		default:
			cur := []byte(lines[len(lines)-1])
			for len(cur) < col {
				cur = append(cur, ' ')
			}
			if col < len(cur) {
				cur[col] = out[i]
			} else {
				cur = append(cur, out[i])
			}
			lines[len(lines)-1] = string(cur)
			col++
		}
		i++
	}
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
