package enums

import "fmt"

// ActorRole names the dashboard role carried in the access token.
type ActorRole string

const (
	ActorRoleClient  ActorRole = "client"
	ActorRoleTrainer ActorRole = "trainer"
	ActorRoleAdmin   ActorRole = "admin"
)

var validActorRoles = []ActorRole{
	ActorRoleClient,
	ActorRoleTrainer,
	ActorRoleAdmin,
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
