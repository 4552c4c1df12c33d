package pdftext

import "testing"

func TestExtractText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "single show",
			content: "BT /F1 12 Tf 72 712 Td (Hello World) Tj ET",
			want:    "Hello World",
		},
		{
			name:    "escapes and nested parens",
			content: `BT (a \(b\) \\ c (d) \101\102) Tj ET`,
			want:    `a (b) \ c (d) AB`,
		},
		{
			name:    "hex string",
			content: "BT <4A616E6520446F65> Tj ET",
			want:    "Jane Doe",
		},
		{
			name:    "vertical move starts a new line",
			content: "BT 72 700 Td (first) Tj 0 -14 Td (second) Tj ET",
			want:    "first\nsecond",
		},
		{
			name:    "T* uses leading",
			content: "BT 14 TL 72 700 Td (one) Tj T* (two) Tj ET",
			want:    "one\ntwo",
		},
		{
			name:    "quote operator moves to next line",
			content: "BT 12 TL 72 700 Td (one) Tj (two) ' ET",
			want:    "one\ntwo",
		},
		{
			name:    "separate text objects on one baseline",
			content: "BT 10 700 Td (Jane Doe) Tj ET BT 120 700 Td (PERSON) Tj ET",
			want:    "Jane Doe\tPERSON",
		},
		{
			name:    "horizontal move inside an object",
			content: "BT 72 700 Td (Acme) Tj 40 0 Td (Corp) Tj ET",
			want:    "Acme Corp",
		},
		{
			name:    "TJ kerning and word gaps",
			content: "BT [(Ac) -20 (me) -300 (Corp)] TJ ET",
			want:    "Acme Corp",
		},
		{
			name:    "Tm sets the line",
			content: "BT 1 0 0 1 72 700 Tm (top) Tj 1 0 0 1 72 600 Tm (bottom) Tj ET",
			want:    "top\nbottom",
		},
		{
			name:    "comments, dictionaries and names are ignored",
			content: "% comment\n/Span << /MCID 0 >> BDC BT /F1 9 Tf (x) Tj ET EMC",
			want:    "x",
		},
		{
			name:    "inline image data is skipped",
			content: "BI /W 2 /H 2 /BPC 8 ID \x00(Tj)\xff EI BT (after) Tj ET",
			want:    "after",
		},
		{
			name:    "windows-1252 bytes",
			content: "BT (caf\\351 \\200) Tj ET",
			want:    "café €",
		},
		{
			name:    "no text operators",
			content: "0.57 w 0 G q 10 0 0 10 0 0 cm Q",
			want:    "",
		},
		{
			name:    "unterminated string does not hang",
			content: "BT (dangling",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractText([]byte(tt.content), nil); got != tt.want {
				t.Errorf("extractText() = %q, want %q", got, tt.want)
			}
		})
	}
}
