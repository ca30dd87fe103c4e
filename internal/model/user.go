package model

import "time"

type Role string

const (
	RoleTeacher  Role = "teacher"
	RoleStudent  Role = "student"
	RoleGuardian Role = "guardian"
	RoleAdmin    Role = "admin"
)

// Valid проверяет, что роль известна.
func (r Role) Valid() bool {
	switch r {
	case RoleTeacher, RoleStudent, RoleGuardian, RoleAdmin:
		return true
	}
	return false
}

// User запись справочника пользователей, который ведёт сервис идентификации.
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name"`
	Role           Role      `json:"role"`
	GuardianID     *int64    `json:"guardian_id"`      // только у студентов
	TelegramChatID *int64    `json:"telegram_chat_id"` // nil - уведомления в Telegram не шлём
	CreatedAt      time.Time `json:"created_at"`
}

// Actor аутентифицированный пользователь запроса.
type Actor struct {
	UserID int64
	Role   Role
}

// TeacherProfile публичные настройки учителя.
type TeacherProfile struct {
	TeacherID        int64  `json:"teacher_id"`
	Handle           string `json:"handle"`
	RequiresApproval bool   `json:"requires_approval"` // бронирования создаются в pending
	Published        bool   `json:"published"`
}
