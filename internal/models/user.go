package models

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// Student and Class are roster projections owned by the platform's
// identity service. This service reads them only to stamp identifying
// fields on grade records and term results.
type Student struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	ClassID  string `json:"class_id"`
}

type Class struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
