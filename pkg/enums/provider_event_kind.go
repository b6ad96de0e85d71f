package enums

import "fmt"

// ProviderEventKind identifies which session family a provider notification targets.
type ProviderEventKind string

const (
	ProviderEventKindCollection   ProviderEventKind = "collection"
	ProviderEventKindDisbursement ProviderEventKind = "disbursement"
)

var validProviderEventKinds = []ProviderEventKind{
	ProviderEventKindCollection,
	ProviderEventKindDisbursement,
}

// IsValid reports whether the value is a known ProviderEventKind.
func (k ProviderEventKind) IsValid() bool {
	for _, candidate := range validProviderEventKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseProviderEventKind converts raw input into a ProviderEventKind.
func ParseProviderEventKind(value string) (ProviderEventKind, error) {
	for _, candidate := range validProviderEventKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provider event kind %q", value)
}
