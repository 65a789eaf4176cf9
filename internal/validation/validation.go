// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

var (
	panPattern  = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	ifscPattern = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
)

// IsValidEmail проверяет, что строка является одиночным адресом без отображаемого имени.
func IsValidEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}

// IsValidPhone допускает необязательный ведущий плюс и от 10 до 15 цифр.
func IsValidPhone(phone string) bool {
	phone = strings.TrimPrefix(phone, "+")
	if len(phone) < 10 || len(phone) > 15 {
		return false
	}
	return allDigits(phone)
}

// IsValidAadhaar проверяет номер Aadhaar: ровно 12 цифр.
func IsValidAadhaar(number string) bool {
	return len(number) == 12 && allDigits(number)
}

// IsValidPAN проверяет номер PAN в формате AAAAA9999A.
func IsValidPAN(number string) bool {
	return panPattern.MatchString(number)
}

// IsValidIFSC проверяет банковский код IFSC.
func IsValidIFSC(code string) bool {
	return ifscPattern.MatchString(code)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}
