package model

// UserRole is carried in the access token; users themselves live in the
// account service.
type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case Student, Teacher, Admin:
		return true
	}
	return false
}
