// Package pdf extracts per-page plain text from PDF bytes. Pages are
// returned positionally (index 0 = page 1); a page that yields no
// text stays an empty string so page numbers remain stable.
package pdf

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func ExtractPages(b []byte) ([]string, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(b), conf)
	if err != nil {
		return nil, fmt.Errorf("reading PDF: %w", err)
	}

	pages := make([]string, ctx.PageCount)
	for i := 1; i <= ctx.PageCount; i++ {
		r, err := pdfcpu.ExtractPageContent(ctx, i)
		if err != nil {
			log.Printf("[PDF] page %d content extraction failed: %v", i, err)
			continue
		}
		if r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			log.Printf("[PDF] page %d content read failed: %v", i, err)
			continue
		}
		pages[i-1] = decodeText(content)
	}
	return pages, nil
}

// decodeText pulls the string literals out of a page content stream
// and joins them per text-showing operator. Good enough for caption
// handouts and slide decks; no font-encoding awareness.
func decodeText(content []byte) string {
	var (
		out     strings.Builder
		literal strings.Builder
		word    strings.Builder
		depth   int
	)

	flushOp := func(op string) {
		switch op {
		case "Tj", "TJ", "'", "\"", "Td", "TD", "T*":
			if literal.Len() > 0 {
				out.WriteString(literal.String())
				out.WriteByte(' ')
				literal.Reset()
			}
		}
		word.Reset()
	}

	for i := 0; i < len(content); i++ {
		c := content[i]

		if depth > 0 {
			switch c {
			case '\\':
				if i+1 < len(content) {
					i++
					literal.WriteByte(unescape(content, &i))
				}
			case '(':
				depth++
				literal.WriteByte(c)
			case ')':
				depth--
				if depth > 0 {
					literal.WriteByte(c)
				}
			default:
				literal.WriteByte(c)
			}
			continue
		}

		switch {
		case c == '(':
			depth = 1
			word.Reset()
		case c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '[' || c == ']' || c == '/':
			flushOp(word.String())
		default:
			word.WriteByte(c)
		}
	}
	flushOp(word.String())

	return strings.TrimSpace(out.String())
}

func unescape(content []byte, i *int) byte {
	c := content[*i]
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	}
	if c >= '0' && c <= '7' {
		oct := string(c)
		for len(oct) < 3 && *i+1 < len(content) && content[*i+1] >= '0' && content[*i+1] <= '7' {
			*i++
			oct += string(content[*i])
		}
		if n, err := strconv.ParseInt(oct, 8, 16); err == nil {
			return byte(n)
		}
	}
	return c // covers \( \) \\ and anything unknown
}
