package pdftext

import (
	"bytes"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/charmap"
)

// decodeFunc turns the bytes of a string operand into text.
type decodeFunc func([]byte) string

// fontSet maps a page's font resource names to their decoders.
type fontSet map[string]decodeFunc

func (fs fontSet) lookup(name string) decodeFunc {
	if d, ok := fs[name]; ok {
		return d
	}
	return decodeWinAnsi
}

func decodeWinAnsi(b []byte) string {
	return decodeCharmap(charmap.Windows1252, b)
}

func decodeMacRoman(b []byte) string {
	return decodeCharmap(charmap.Macintosh, b)
}

func decodeCharmap(cm *charmap.Charmap, b []byte) string {
	b = bytes.ReplaceAll(b, []byte{0}, nil)
	s, err := cm.NewDecoder().String(string(b))
	if err != nil {
		return string(b)
	}
	return s
}

// pageFonts resolves the fonts of a page's resource dictionary. Fonts that
// cannot be resolved are left out and decode as WinAnsi.
func pageFonts(ctx *model.Context, pageNr int) fontSet {
	_, _, attrs, err := ctx.PageDict(pageNr, false)
	if err != nil || attrs == nil || attrs.Resources == nil {
		return nil
	}
	obj, found := attrs.Resources.Find("Font")
	if !found {
		return nil
	}
	fonts, err := ctx.DereferenceDict(obj)
	if err != nil || fonts == nil {
		return nil
	}

	fs := fontSet{}
	for name, ref := range fonts {
		fd, err := ctx.DereferenceDict(ref)
		if err != nil || fd == nil {
			continue
		}
		fs[name] = fontDecoder(ctx, fd)
	}
	return fs
}

func fontDecoder(ctx *model.Context, fd types.Dict) decodeFunc {
	if obj, found := fd.Find("ToUnicode"); found {
		if cm := loadCMap(ctx, obj); cm != nil {
			return cm.decode
		}
	}
	if st := fd.Subtype(); st != nil && *st == "Type0" {
		// Glyph IDs without a ToUnicode map carry no recoverable text.
		return func([]byte) string { return "" }
	}
	if obj, found := fd.Find("Encoding"); found {
		if o, err := ctx.Dereference(obj); err == nil {
			if enc := encodingName(o); enc == "MacRomanEncoding" {
				return decodeMacRoman
			}
		}
	}
	return decodeWinAnsi
}

func encodingName(o types.Object) string {
	switch enc := o.(type) {
	case types.Name:
		return enc.Value()
	case types.Dict:
		if n := enc.NameEntry("BaseEncoding"); n != nil {
			return *n
		}
	}
	return ""
}

func loadCMap(ctx *model.Context, obj types.Object) *cmap {
	sd, _, err := ctx.DereferenceStreamDict(obj)
	if err != nil || sd == nil {
		return nil
	}
	if sd.Content == nil {
		if err := sd.Decode(); err != nil {
			return nil
		}
	}
	cm := parseCMap(sd.Content)
	if cm.empty() {
		return nil
	}
	return cm
}

// codeRange is one codespace range: codes of len(lo) bytes between lo and hi.
type codeRange struct {
	lo, hi []byte
}

func (r codeRange) contains(code []byte) bool {
	if len(code) != len(r.lo) {
		return false
	}
	for i, c := range code {
		if c < r.lo[i] || c > r.hi[i] {
			return false
		}
	}
	return true
}

type bfRange struct {
	lo, hi uint32
	width  int
	dst    []rune
	list   []string
}

// cmap is a parsed ToUnicode CMap.
type cmap struct {
	space  []codeRange
	chars  map[int]map[uint32]string
	ranges []bfRange
}

func (cm *cmap) empty() bool {
	return len(cm.chars) == 0 && len(cm.ranges) == 0
}

func codeValue(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}

func utf16Text(b []byte) string {
	if len(b)%2 != 0 {
		return string(b)
	}
	u := make([]uint16, len(b)/2)
	for i := range u {
		u[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return string(utf16.Decode(u))
}

// parseCMap reads the codespace, bfchar and bfrange sections of a CMap.
func parseCMap(data []byte) *cmap {
	cm := &cmap{chars: map[int]map[uint32]string{}}
	lx := &lexer{buf: data}
	for {
		tok := lx.next()
		if tok.kind == tokEOF {
			return cm
		}
		if tok.kind != tokOperator {
			continue
		}
		switch tok.op {
		case "begincodespacerange", "beginbfchar", "beginbfrange":
			cm.readSection(lx, tok.op)
		}
	}
}

func (cm *cmap) readSection(lx *lexer, section string) {
	var entry []token
	var arr []token
	inArray := false

	for {
		tok := lx.next()
		switch tok.kind {
		case tokEOF:
			return
		case tokOperator:
			if strings.HasPrefix(tok.op, "end") {
				return
			}
			continue
		case tokArrayStart:
			inArray, arr = true, nil
			continue
		case tokArrayEnd:
			if inArray {
				entry = append(entry, token{kind: tokArrayStart, elems: arr})
				inArray = false
			}
		case tokString, tokName:
			if inArray {
				arr = append(arr, tok)
				continue
			}
			entry = append(entry, tok)
		default:
			continue
		}

		switch section {
		case "begincodespacerange":
			if len(entry) == 2 {
				if len(entry[0].str) > 0 && len(entry[0].str) == len(entry[1].str) {
					cm.space = append(cm.space, codeRange{lo: entry[0].str, hi: entry[1].str})
				}
				entry = entry[:0]
			}
		case "beginbfchar":
			if len(entry) == 2 {
				if src := entry[0].str; len(src) > 0 && entry[1].kind == tokString {
					m := cm.chars[len(src)]
					if m == nil {
						m = map[uint32]string{}
						cm.chars[len(src)] = m
					}
					m[codeValue(src)] = utf16Text(entry[1].str)
				}
				entry = entry[:0]
			}
		case "beginbfrange":
			if len(entry) == 3 {
				cm.addRange(entry[0].str, entry[1].str, entry[2])
				entry = entry[:0]
			}
		}
	}
}

func (cm *cmap) addRange(lo, hi []byte, dst token) {
	if len(lo) == 0 || len(lo) != len(hi) {
		return
	}
	r := bfRange{lo: codeValue(lo), hi: codeValue(hi), width: len(lo)}
	if r.hi < r.lo {
		return
	}
	switch dst.kind {
	case tokString:
		r.dst = []rune(utf16Text(dst.str))
		if len(r.dst) == 0 {
			return
		}
	case tokArrayStart:
		for _, el := range dst.elems {
			r.list = append(r.list, utf16Text(el.str))
		}
	default:
		return
	}
	cm.ranges = append(cm.ranges, r)
}

func (cm *cmap) lookup(code []byte) (string, bool) {
	v := codeValue(code)
	if s, ok := cm.chars[len(code)][v]; ok {
		return s, true
	}
	for _, r := range cm.ranges {
		if r.width != len(code) || v < r.lo || v > r.hi {
			continue
		}
		off := v - r.lo
		if r.list != nil {
			if int(off) < len(r.list) {
				return r.list[off], true
			}
			return "", false
		}
		// The last code unit of the destination is incremented across the range.
		out := append([]rune(nil), r.dst...)
		out[len(out)-1] += rune(off)
		return string(out), true
	}
	return "", false
}

// codeLen picks the length of the code starting at b[0].
func (cm *cmap) codeLen(b []byte) int {
	for n := 1; n <= 4 && n <= len(b); n++ {
		for _, r := range cm.space {
			if r.contains(b[:n]) {
				return n
			}
		}
	}
	if len(cm.space) == 0 {
		for n := 1; n <= 4 && n <= len(b); n++ {
			if _, ok := cm.chars[n]; ok {
				return n
			}
			for _, r := range cm.ranges {
				if r.width == n {
					return n
				}
			}
		}
	}
	return 1
}

func (cm *cmap) decode(b []byte) string {
	var sb strings.Builder
	for len(b) > 0 {
		n := cm.codeLen(b)
		if s, ok := cm.lookup(b[:n]); ok {
			sb.WriteString(strings.ReplaceAll(s, "\x00", ""))
		}
		b = b[n:]
	}
	return sb.String()
}
