package util

import "testing"

func TestValidateCPF(t *testing.T) {
	valid := []string{"529.982.247-25", "52998224725"}
	for _, cpf := range valid {
		if err := ValidateCPF(cpf); err != nil {
			t.Fatalf("expected %s to be valid, got %v", cpf, err)
		}
	}

	invalid := []string{"", "123", "111.111.111-11", "529.982.247-24"}
	for _, cpf := range invalid {
		if err := ValidateCPF(cpf); err == nil {
			t.Fatalf("expected %q to be rejected", cpf)
		}
	}
}

func TestMinLengthCountsRunes(t *testing.T) {
	if err := MinLength("ação", "campo", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := MinLength("  ab  ", "campo", 3); err == nil {
		t.Fatal("expected error for short value")
	}
}

func TestFoldAccents(t *testing.T) {
	if got := FoldAccents("Relatório de Março"); got != "Relatorio de Marco" {
		t.Fatalf("unexpected fold: %q", got)
	}
}
