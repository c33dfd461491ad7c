package textnorm

import "testing"

func TestFold(t *testing.T) {
	tests := map[string]string{
		"Comparação":  "comparacao",
		"  RECEITA ":  "receita",
		"café":        "cafe",
		"Ônibus":      "onibus",
		"naïve":       "naive",
		"plain":       "plain",
	}
	for in, want := range tests {
		if got := Fold(in); got != want {
			t.Errorf("Fold(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHasMarks(t *testing.T) {
	if !HasMarks("promoção") {
		t.Error("promoção has marks")
	}
	if HasMarks("Promocao") {
		t.Error("Promocao has no marks")
	}
}

func TestSlug(t *testing.T) {
	if got := Slug("Bastidores da Rotina!"); got != "bastidores_da_rotina" {
		t.Errorf("Slug() = %q", got)
	}
	if got := Slug("Antes & Depois"); got != "antes_depois" {
		t.Errorf("Slug() = %q", got)
	}
}
