package auth

// Role is the closed set of account roles. Values are stored as smallints and
// carried in token claims; anything outside the set is rejected at the boundary.
type Role int16

const (
	RoleAdmin   Role = 1
	RoleSchool  Role = 2
	RoleTeacher Role = 3
)

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSchool, RoleTeacher:
		return true
	}
	return false
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleSchool:
		return "school"
	case RoleTeacher:
		return "teacher"
	}
	return "unknown"
}
