package directive

import (
	"fmt"
	"regexp"
	"strings"
)

// Block is one raw directive block found in a document: the title argument,
// the option lines, and the source position of the opening fence.
type Block struct {
	Title   string
	Options map[string]string
	File    string
	Line    int // 1-based line of the opening fence

	// Start and End delimit the block in the document's line slice,
	// inclusive of both fences.
	Start int
	End   int
}

// Location returns the "file:line" position used in error reports
func (b Block) Location() string {
	return fmt.Sprintf("%s:%d", b.File, b.Line)
}

var (
	fenceRe  = regexp.MustCompile("^```\\{" + Name + "\\}\\s*(.*)$")
	optionRe = regexp.MustCompile(`^:([a-z-]+):\s*(.*)$`)
)

// ScanBlocks finds every directive block in a document's lines. The scan is
// thin I/O: it delimits blocks and collects options without interpreting
// them; Parse does the validation.
func ScanBlocks(file string, lines []string) []Block {
	var blocks []Block

	for i := 0; i < len(lines); i++ {
		m := fenceRe.FindStringSubmatch(strings.TrimRight(lines[i], " \t"))
		if m == nil {
			continue
		}

		block := Block{
			Title:   strings.TrimSpace(m[1]),
			Options: make(map[string]string),
			File:    file,
			Line:    i + 1,
			Start:   i,
			End:     len(lines) - 1,
		}

		j := i + 1
		for ; j < len(lines); j++ {
			line := strings.TrimRight(lines[j], " \t")
			if line == "```" {
				block.End = j
				break
			}
			if opt := optionRe.FindStringSubmatch(line); opt != nil {
				block.Options[opt[1]] = strings.TrimSpace(opt[2])
			}
			// anything else inside the block is directive body and
			// carries no meaning for this directive
		}

		blocks = append(blocks, block)
		i = block.End
	}

	return blocks
}
