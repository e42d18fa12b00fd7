package search

import (
	"bufio"
	"strings"
)

// PlainText flattens Markdown written in thread descriptions into plain
// prose suitable for tokenizing.
//
// Notes:
//   - Table rows become standalone facts ("| a | b |" -> "a b").
//   - Heading, quote and list markers are dropped.
//   - Fenced code markers are removed but the code itself is kept, since
//     identifiers are often the most distinctive part of a question.
//   - Inline emphasis and backticks are stripped.
func PlainText(md string) string {
	var b strings.Builder
	sc := bufio.NewScanner(strings.NewReader(md))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~") {
			continue
		}

		// table row: "| ... |"
		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			if isSeparatorRow(line) {
				continue
			}
			cells := strings.Split(strings.Trim(line, "|"), "|")
			for i := range cells {
				cells[i] = strings.TrimSpace(cells[i])
			}
			line = strings.Join(cells, " ")
		}

		line = strings.TrimLeft(line, "#> ")
		for _, p := range []string{"- ", "* ", "+ "} {
			line = strings.TrimPrefix(line, p)
		}
		line = inlineMarks.Replace(line)

		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSpace(line))
	}
	return strings.TrimSpace(b.String())
}

var inlineMarks = strings.NewReplacer("`", "", "**", "", "__", "", "~~", "")

// isSeparatorRow reports whether a table row is the header separator,
// e.g. "|---|:---:|".
func isSeparatorRow(line string) bool {
	for _, r := range line {
		switch r {
		case '|', '-', ':', ' ':
		default:
			return false
		}
	}
	return true
}
