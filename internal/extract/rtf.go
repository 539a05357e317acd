package extract

import (
	"fmt"
	"strconv"
	"strings"
)

// Destination groups whose content is metadata, not body text.
var rtfSkipDestinations = map[string]bool{
	"fonttbl":    true,
	"colortbl":   true,
	"stylesheet": true,
	"info":       true,
	"pict":       true,
	"object":     true,
	"header":     true,
	"footer":     true,
	"footnote":   true,
}

type rtfGroupState struct {
	skip      bool
	ucSkip    int
	pendingUc int
}

// extractRTF extracts plain text from RTF bytes. Control words are walked with
// a small state machine: paragraph and line breaks become newlines, \'hh and
// \uN escapes are decoded, and metadata destinations (font and color tables,
// stylesheets, embedded objects) are skipped.
func extractRTF(content []byte) (string, error) {
	if !strings.HasPrefix(string(content), `{\rtf`) {
		return "", fmt.Errorf("extract RTF: missing {\\rtf header")
	}

	var b strings.Builder
	stack := []rtfGroupState{{ucSkip: 1}}
	cur := func() *rtfGroupState { return &stack[len(stack)-1] }

	for i := 0; i < len(content); {
		c := content[i]
		switch c {
		case '{':
			stack = append(stack, *cur())
			i++
		case '}':
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			i++
		case '\\':
			i += rtfControl(content[i:], cur(), &b)
		case '\r', '\n':
			i++
		default:
			st := cur()
			if st.pendingUc > 0 {
				st.pendingUc--
			} else if !st.skip {
				b.WriteByte(c)
			}
			i++
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// rtfControl consumes one control word or symbol starting at the backslash and
// returns the number of bytes consumed.
func rtfControl(data []byte, st *rtfGroupState, b *strings.Builder) int {
	if len(data) < 2 {
		return len(data)
	}
	c := data[1]

	// Control symbols.
	switch c {
	case '\\', '{', '}':
		if !st.skip {
			b.WriteByte(c)
		}
		return 2
	case '~':
		if !st.skip {
			b.WriteByte(' ')
		}
		return 2
	case '*':
		// {\*\dest ...}: an unrecognized destination, drop the group.
		st.skip = true
		return 2
	case '\'':
		if len(data) < 4 {
			return len(data)
		}
		if st.pendingUc > 0 {
			st.pendingUc--
		} else if !st.skip {
			if v, err := strconv.ParseUint(string(data[2:4]), 16, 8); err == nil {
				// Treat the byte as Latin-1, which covers the common cp1252 range.
				b.WriteRune(rune(v))
			}
		}
		return 4
	}

	// Control word: letters, optional signed number, optional space delimiter.
	j := 1
	for j < len(data) && isASCIILetter(data[j]) {
		j++
	}
	word := string(data[1:j])
	numStart := j
	if j < len(data) && data[j] == '-' {
		j++
	}
	digits := j
	for j < len(data) && data[j] >= '0' && data[j] <= '9' {
		j++
	}
	num, hasNum := 0, j > digits
	if hasNum {
		num, _ = strconv.Atoi(string(data[numStart:j]))
	}
	if j < len(data) && data[j] == ' ' {
		j++
	}

	switch word {
	case "par", "line", "sect", "page":
		if !st.skip {
			b.WriteByte('\n')
		}
	case "tab":
		if !st.skip {
			b.WriteByte('\t')
		}
	case "emdash", "endash":
		if !st.skip {
			b.WriteByte('-')
		}
	case "uc":
		if hasNum && num >= 0 {
			st.ucSkip = num
		}
	case "u":
		if !st.skip && hasNum {
			r := rune(num)
			if r < 0 {
				r += 0x10000
			}
			b.WriteRune(r)
		}
		st.pendingUc = st.ucSkip
	case "bin":
		if hasNum && num > 0 {
			j += num
			if j > len(data) {
				j = len(data)
			}
		}
	default:
		if rtfSkipDestinations[word] {
			st.skip = true
		}
	}
	return j
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
