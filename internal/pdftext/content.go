package pdftext

import (
	"math"
	"strconv"
	"strings"
)

// A TJ adjustment at or below this (in thousandths of a text space unit)
// is treated as a word gap.
const wordGapThreshold = -200

// Baselines closer than this are considered the same line.
const baselineTolerance = 0.5

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokName
	tokOperator
	tokArrayStart
	tokArrayEnd
	tokIgnored
)

type token struct {
	kind  tokenKind
	num   float64
	str   []byte
	op    string
	elems []token
}

type lexer struct {
	buf []byte
	pos int
}

func isWhitespace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		if isWhitespace(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.buf) && l.buf[l.pos] != '\n' && l.buf[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

func (l *lexer) next() token {
	l.skipSpace()
	if l.pos >= len(l.buf) {
		return token{kind: tokEOF}
	}
	c := l.buf[l.pos]
	switch c {
	case '(':
		l.pos++
		return token{kind: tokString, str: l.literalString()}
	case '<':
		if l.pos+1 < len(l.buf) && l.buf[l.pos+1] == '<' {
			l.pos += 2
			return token{kind: tokIgnored}
		}
		l.pos++
		return token{kind: tokString, str: l.hexString()}
	case '>':
		l.pos++
		if l.pos < len(l.buf) && l.buf[l.pos] == '>' {
			l.pos++
		}
		return token{kind: tokIgnored}
	case '[':
		l.pos++
		return token{kind: tokArrayStart}
	case ']':
		l.pos++
		return token{kind: tokArrayEnd}
	case '{', '}', ')':
		l.pos++
		return token{kind: tokIgnored}
	case '/':
		l.pos++
		return token{kind: tokName, op: l.regular()}
	}

	word := l.regular()
	if word == "" {
		// Unreachable for well-formed input; never stall on a stray byte.
		l.pos++
		return token{kind: tokIgnored}
	}
	if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
		if n, err := strconv.ParseFloat(word, 64); err == nil {
			return token{kind: tokNumber, num: n}
		}
	}
	return token{kind: tokOperator, op: word}
}

func (l *lexer) regular() string {
	start := l.pos
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		l.pos++
	}
	return string(l.buf[start:l.pos])
}

func (l *lexer) literalString() []byte {
	var out []byte
	depth := 1
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return out
			}
		case '\\':
			if l.pos >= len(l.buf) {
				return out
			}
			e := l.buf[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if l.pos < len(l.buf) && l.buf[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.buf); i++ {
						d := l.buf[l.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v*8 + int(d-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

func (l *lexer) hexString() []byte {
	var out []byte
	var hi byte
	half := false
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		l.pos++
		if c == '>' {
			break
		}
		v, ok := hexValue(c)
		if !ok {
			continue
		}
		if half {
			out = append(out, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	if half {
		out = append(out, hi<<4)
	}
	return out
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// skipInlineImage moves past the binary data that follows an ID operator.
func (l *lexer) skipInlineImage() {
	if l.pos < len(l.buf) && isWhitespace(l.buf[l.pos]) {
		l.pos++
	}
	for i := l.pos; i+1 < len(l.buf); i++ {
		if l.buf[i] != 'E' || l.buf[i+1] != 'I' {
			continue
		}
		before := i == 0 || isWhitespace(l.buf[i-1])
		after := i+2 >= len(l.buf) || isWhitespace(l.buf[i+2])
		if before && after {
			l.pos = i + 2
			return
		}
	}
	l.pos = len(l.buf)
}

// matrix is a PDF affine transform [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

func (m matrix) translate(tx, ty float64) matrix {
	m[4] += tx*m[0] + ty*m[2]
	m[5] += tx*m[1] + ty*m[3]
	return m
}

type textWriter struct {
	out      strings.Builder
	lineMat  matrix
	leading  float64
	started  bool
	lastY    float64
	newBlock bool
	moved    bool
	decode   decodeFunc
	saved    []decodeFunc
}

func (w *textWriter) lastIsSpace() bool {
	s := w.out.String()
	return s == "" || strings.HasSuffix(s, " ") || strings.HasSuffix(s, "\n") || strings.HasSuffix(s, "\t")
}

func (w *textWriter) show(s []byte) {
	text := w.decode(s)
	if text == "" {
		return
	}
	y := w.lineMat[5]
	if w.started {
		switch {
		case math.Abs(y-w.lastY) > baselineTolerance:
			w.out.WriteByte('\n')
		case w.newBlock:
			w.out.WriteByte('\t')
		case w.moved && !w.lastIsSpace():
			w.out.WriteByte(' ')
		}
	}
	w.out.WriteString(text)
	w.started = true
	w.lastY = y
	w.newBlock = false
	w.moved = false
}

func (w *textWriter) moveTo(m matrix) {
	w.lineMat = m
	w.moved = true
}

func (w *textWriter) nextLine() {
	w.moveTo(w.lineMat.translate(0, -w.leading))
}

func numbers(operands []token, n int) ([]float64, bool) {
	if len(operands) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i, t := range operands[len(operands)-n:] {
		if t.kind != tokNumber {
			return nil, false
		}
		out[i] = t.num
	}
	return out, true
}

func lastString(operands []token) ([]byte, bool) {
	if len(operands) == 0 || operands[len(operands)-1].kind != tokString {
		return nil, false
	}
	return operands[len(operands)-1].str, true
}

// extractText returns the readable text of a decoded page content stream.
// Separate lines are joined with '\n'; separate text objects sharing a
// baseline are joined with '\t'. Strings are decoded with the font selected
// by Tf; unknown fonts decode as WinAnsi.
func extractText(content []byte, fonts fontSet) string {
	lx := &lexer{buf: content}
	w := &textWriter{lineMat: identity, decode: decodeWinAnsi}

	var operands []token
	var arrays [][]token

	for {
		tok := lx.next()
		switch tok.kind {
		case tokEOF:
			return strings.TrimSpace(w.out.String())
		case tokIgnored:
			continue
		case tokArrayStart:
			arrays = append(arrays, nil)
			continue
		case tokArrayEnd:
			if len(arrays) == 0 {
				continue
			}
			arr := token{kind: tokArrayStart, elems: arrays[len(arrays)-1]}
			arrays = arrays[:len(arrays)-1]
			if len(arrays) > 0 {
				arrays[len(arrays)-1] = append(arrays[len(arrays)-1], arr)
			} else {
				operands = append(operands, arr)
			}
			continue
		case tokOperator:
		default:
			if len(arrays) > 0 {
				arrays[len(arrays)-1] = append(arrays[len(arrays)-1], tok)
			} else {
				operands = append(operands, tok)
			}
			continue
		}

		arrays = arrays[:0]
		switch tok.op {
		case "BT":
			w.lineMat = identity
			w.newBlock = true
		case "Td", "TD":
			if v, ok := numbers(operands, 2); ok {
				if tok.op == "TD" {
					w.leading = -v[1]
				}
				w.moveTo(w.lineMat.translate(v[0], v[1]))
			}
		case "Tm":
			if v, ok := numbers(operands, 6); ok {
				w.moveTo(matrix{v[0], v[1], v[2], v[3], v[4], v[5]})
			}
		case "Tf":
			if len(operands) >= 2 && operands[len(operands)-2].kind == tokName {
				w.decode = fonts.lookup(operands[len(operands)-2].op)
			}
		case "q":
			w.saved = append(w.saved, w.decode)
		case "Q":
			if n := len(w.saved); n > 0 {
				w.decode = w.saved[n-1]
				w.saved = w.saved[:n-1]
			}
		case "TL":
			if v, ok := numbers(operands, 1); ok {
				w.leading = v[0]
			}
		case "T*":
			w.nextLine()
		case "Tj":
			if s, ok := lastString(operands); ok {
				w.show(s)
			}
		case "'", "\"":
			w.nextLine()
			if s, ok := lastString(operands); ok {
				w.show(s)
			}
		case "TJ":
			if len(operands) > 0 && operands[len(operands)-1].kind == tokArrayStart {
				for _, el := range operands[len(operands)-1].elems {
					switch {
					case el.kind == tokString:
						w.show(el.str)
					case el.kind == tokNumber && el.num <= wordGapThreshold && w.started && !w.lastIsSpace():
						w.out.WriteByte(' ')
					}
				}
			}
		case "ID":
			lx.skipInlineImage()
		}
		operands = operands[:0]
	}
}
