package notification

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lamiedu/taarifa/core"
)

// Recipient roles. A notification is addressed to exactly one (role, id) pair.
const (
	RoleAdmin   Role = "admin"
	RoleMentor  Role = "mentor"
	RoleStudent Role = "student"
	RoleCompany Role = "company"
)

var AllRoles = []Role{RoleAdmin, RoleMentor, RoleStudent, RoleCompany}

type Role string

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMentor, RoleStudent, RoleCompany:
		return true
	}
	return false
}

// Recipient is the (role, id) pair a notification is addressed to.
type Recipient struct {
	Role Role `json:"role" query:"role"`
	ID   int  `json:"recipientId" query:"recipientId"`
}

func (r Recipient) Validate() error {
	var flds []core.FieldError
	if !r.Role.Valid() {
		flds = append(flds, core.FieldError{Field: "role", Error: errUnknownRole})
	}
	if r.ID <= 0 {
		flds = append(flds, core.FieldError{Field: "recipientId", Error: errBadRecipientID})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

type Notification struct {
	ID            int       `json:"id" db:"id"`
	RecipientRole Role      `json:"recipientRole" db:"recipient_role"`
	RecipientID   int       `json:"recipientId" db:"recipient_id"`
	Title         string    `json:"title" db:"title"`
	Message       string    `json:"message" db:"message"`
	IsRead        bool      `json:"isRead" db:"is_read"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"` // UTC
}

func (n Notification) Recipient() Recipient {
	return Recipient{Role: n.RecipientRole, ID: n.RecipientID}
}

// NewNotification contains information needed to create a Notification.
// Email, when set, additionally sends the notification to the recipient's inbox.
type NewNotification struct {
	RecipientRole Role   `json:"recipientRole" validate:"required,recipientrole"`
	RecipientID   int    `json:"recipientId" validate:"required,gt=0"`
	Title         string `json:"title" validate:"required"`
	Message       string `json:"message" validate:"required"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
}

func (nn *NewNotification) Validate(validate *validator.Validate) error {
	nn.Title = core.CleanString(nn.Title)
	nn.Message = core.CleanString(nn.Message)
	nn.Email = core.CleanString(nn.Email, true /* lower */)
	return validate.Struct(nn)
}
