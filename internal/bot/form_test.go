package bot

import (
	"strings"
	"testing"
)

func TestSanitizeInput(t *testing.T) {
	cases := map[string]string{
		"nissan":            "NISSAN",
		"  Versa 1.6  ":     "VERSA 1.6",
		"x-trail":           "X-TRAIL",
		"serie_01/a":        "SERIE_01/A",
		"<b>hack</b>":       "BHACKB",
		"ñandú":             "ÑANDÚ",
		"!!!":               "",
		"":                  "",
		"\t rojo \n":        "ROJO",
		"juan pérez garcía": "JUAN PÉREZ GARCÍA",
	}
	for in, want := range cases {
		if got := sanitizeInput(in); got != want {
			t.Fatalf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsFourDigitYear(t *testing.T) {
	valid := []string{"2020", "1999", "0001"}
	invalid := []string{"", "20", "20203", "20a0", "twenty", "-202"}

	for _, in := range valid {
		if !isFourDigitYear(in) {
			t.Fatalf("isFourDigitYear(%q) = false, want true", in)
		}
	}
	for _, in := range invalid {
		if isFourDigitYear(in) {
			t.Fatalf("isFourDigitYear(%q) = true, want false", in)
		}
	}
}

func TestHTMLTagReplacerStripsFormatting(t *testing.T) {
	in := "⏰ <b>TIEMPO AGOTADO</b>\n\nEl folio <b>1292</b> fue eliminado. <code>SERO1292</code>"
	got := htmlTagReplacer.Replace(in)
	for _, tag := range []string{"<b>", "</b>", "<code>", "</code>"} {
		if strings.Contains(got, tag) {
			t.Fatalf("tag %q survived stripping: %q", tag, got)
		}
	}
	if !strings.Contains(got, "1292") {
		t.Fatal("stripped text lost its content")
	}
}
