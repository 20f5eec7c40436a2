package notification

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/lamiedu/taarifa/core"
)

var (
	recipientRoleTag  = "recipientrole"
	recipientRoleText = "unknown recipient role"

	errUnknownRole    = recipientRoleText
	errBadRecipientID = "recipient id must be a positive integer"
)

// InitValidators registers notification-specific validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(recipientRoleTag, recipientRoleValidation)
	core.RegisterCustomTranslation(validate, translator, recipientRoleTag, recipientRoleText)
}

// recipientRoleValidation only allows the known recipient roles.
func recipientRoleValidation(fl validator.FieldLevel) bool {
	return Role(fl.Field().String()).Valid()
}
