// Package markdown renders the backend's markdown (narratives, chat replies,
// storyboard sections) for a terminal.
package markdown

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/rivo/tview"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

// ToTerminal renders src with tview style tags.
func ToTerminal(src string) string {
	return render(src, true)
}

// PlainText renders src without any markup, e.g. for read-aloud.
func PlainText(src string) string {
	return render(src, false)
}

// renderer escapes adjacent text nodes together through pending, since the
// parser may split "[red]" into several nodes.
type renderer struct {
	src     []byte
	styled  bool
	out     strings.Builder
	pending strings.Builder
	lists   []int // next ordinal per open list; 0 for bullet lists
}

func render(src string, styled bool) string {
	source := []byte(src)
	doc := md.Parser().Parse(text.NewReader(source))
	r := &renderer{src: source, styled: styled}
	_ = ast.Walk(doc, r.walk)
	r.flush()
	return strings.TrimRight(collapseBlankLines(r.out.String()), "\n")
}

func (r *renderer) flush() {
	if r.pending.Len() == 0 {
		return
	}
	if r.styled {
		r.out.WriteString(tview.Escape(r.pending.String()))
	} else {
		r.out.WriteString(r.pending.String())
	}
	r.pending.Reset()
}

func (r *renderer) raw(s string) {
	r.flush()
	r.out.WriteString(s)
}

func (r *renderer) tag(t string) {
	if r.styled {
		r.raw(t)
	}
}

func (r *renderer) text(b []byte) {
	r.pending.Write(b)
}

func (r *renderer) blockEnd() {
	r.raw("\n\n")
}

func (r *renderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.tag("[::b]")
			if node.Level <= 2 {
				r.tag("[yellow]")
			}
		} else {
			if node.Level <= 2 {
				r.tag("[-]")
			}
			r.tag("[::-]")
			r.blockEnd()
		}
	case *ast.Paragraph:
		if !entering {
			if _, inItem := node.Parent().(*ast.ListItem); inItem {
				r.raw("\n")
			} else {
				r.blockEnd()
			}
		}
	case *ast.TextBlock:
		if !entering {
			r.raw("\n")
		}
	case *ast.Text:
		if entering {
			r.text(node.Segment.Value(r.src))
			if node.HardLineBreak() || node.SoftLineBreak() {
				r.raw("\n")
			}
		}
	case *ast.String:
		if entering {
			r.text(node.Value)
		}
	case *ast.Emphasis:
		switch {
		case !entering:
			r.tag("[::-]")
		case node.Level >= 2:
			r.tag("[::b]")
		default:
			r.tag("[::i]")
		}
	case *ast.CodeSpan:
		if entering {
			r.tag("[aqua]")
		} else {
			r.tag("[-]")
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if entering {
			r.tag("[aqua]")
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				r.raw("    ")
				r.text(bytes.TrimRight(seg.Value(r.src), "\n"))
				r.raw("\n")
			}
			r.tag("[-]")
			r.raw("\n")
			return ast.WalkSkipChildren, nil
		}
	case *ast.List:
		if entering {
			start := 0
			if node.IsOrdered() {
				start = node.Start
				if start == 0 {
					start = 1
				}
			}
			r.lists = append(r.lists, start)
		} else {
			r.lists = r.lists[:len(r.lists)-1]
			if len(r.lists) == 0 {
				r.raw("\n")
			}
		}
	case *ast.ListItem:
		if entering {
			depth := len(r.lists)
			r.raw(strings.Repeat("  ", depth-1))
			if ord := r.lists[depth-1]; ord > 0 {
				r.raw(strconv.Itoa(ord) + ". ")
				r.lists[depth-1]++
			} else {
				r.raw("• ")
			}
		}
	case *ast.Link:
		if !entering && r.styled {
			r.raw(" [gray](" + tview.Escape(string(node.Destination)) + ")[-]")
		}
	case *ast.AutoLink:
		if entering {
			r.text(node.URL(r.src))
			return ast.WalkSkipChildren, nil
		}
	case *ast.Blockquote:
		if entering {
			r.tag("[gray]")
		} else {
			r.tag("[-]")
		}
	case *ast.ThematicBreak:
		if entering {
			r.raw(strings.Repeat("─", 20))
			r.blockEnd()
		}
	case *ast.HTMLBlock, *ast.RawHTML:
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
