package phone

import (
	"strings"

	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
)

// NormalizeMSISDN converts the common local formats into the canonical
// 2547XXXXXXXX / 2541XXXXXXXX form the provider expects. Accepted inputs:
// "+254712345678", "254712345678", "0712345678", "0112345678".
func NormalizeMSISDN(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	cleaned = strings.TrimPrefix(cleaned, "+")
	if strings.HasPrefix(cleaned, "0") && len(cleaned) == 10 {
		cleaned = "254" + cleaned[1:]
	}

	if len(cleaned) != 12 || !strings.HasPrefix(cleaned, "254") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "phone must be a Kenyan MSISDN")
	}
	next := cleaned[3]
	if next != '7' && next != '1' {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "phone must be a Kenyan mobile number")
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "phone must contain digits only")
		}
	}
	return cleaned, nil
}
