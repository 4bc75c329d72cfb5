package models

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	apperrors "sonar/backend/pkg/errors"
)

// Dataset is a bulk import payload
type Dataset struct {
	Articles    []Article    `json:"articles" validate:"dive"`
	Authors     []Author     `json:"authors" validate:"dive"`
	Citations   []Citation   `json:"citations" validate:"dive"`
	Authorships []Authorship `json:"authorships" validate:"dive"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct tags on a record or dataset and converts the first
// failure into a validation error naming the offending field.
func Validate(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperrors.NewInvalidArgument(fe.Namespace(), fmt.Sprintf("failed %q check", fe.Tag()))
	}
	return apperrors.NewInvalidArgument("record", err.Error())
}
