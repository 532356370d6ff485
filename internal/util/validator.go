package util

import (
	"errors"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ValidateEmail retorna erro para e-mails inválidos.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email obrigatório")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("email inválido")
	}
	return nil
}

// ValidatePassword verifica requisitos mínimos de senha.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("senha deve ter pelo menos 8 caracteres")
	}
	return nil
}

// RequireString garante string não vazia.
func RequireString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New(field + " obrigatório")
	}
	return nil
}

// MinLength exige quantidade mínima de caracteres (não bytes).
func MinLength(value, field string, n int) error {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < n {
		return errors.New(field + " muito curto")
	}
	return nil
}

// OnlyDigits remove tudo que não for dígito (CPF, CEP, telefone).
func OnlyDigits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateCPF confere tamanho e dígitos verificadores.
func ValidateCPF(cpf string) error {
	digits := OnlyDigits(cpf)
	if len(digits) != 11 {
		return errors.New("cpf deve ter 11 dígitos")
	}
	if strings.Count(digits, digits[:1]) == 11 {
		return errors.New("cpf inválido")
	}

	calc := func(n int) byte {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(digits[i]-'0') * (n + 1 - i)
		}
		rest := (sum * 10) % 11
		if rest == 10 {
			rest = 0
		}
		return byte(rest) + '0'
	}

	if calc(9) != digits[9] || calc(10) != digits[10] {
		return errors.New("cpf inválido")
	}
	return nil
}

// FoldAccents remove diacríticos ("Relatório" -> "Relatorio").
func FoldAccents(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}
