package models

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleProctor UserRole = "proctor"
	RoleAdmin   UserRole = "admin"
)

// User is resolved from Casdoor; the service does not own user rows.
type User struct {
	ID            string   `json:"id"`
	FullName      string   `json:"full_name"`
	Email         string   `json:"email"`
	Role          UserRole `json:"role"`
	AvatarURL     *string  `json:"avatar_url,omitempty"`
	EmailVerified bool     `json:"email_verified"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// CanAuthor reports whether the user may create and manage tests.
func (u *User) CanAuthor() bool {
	return u != nil && (u.Role == RoleTeacher || u.Role == RoleAdmin)
}
