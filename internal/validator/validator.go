// Package validator checks discovered posts and extracted deals before they
// enter the table.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pauljones0/fly4deals/internal/models"
)

var ErrInvalid = errors.New("validation failed")

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so messages match the model reply.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Deal rejects deals missing from, to or price.
func (v *Validator) Deal(d models.Deal) error {
	return v.check("deal", d)
}

// Post rejects posts without a title or URL, or with a negative image count.
func (v *Validator) Post(p models.PostRecord) error {
	return v.check("post", p)
}

func (v *Validator) check(kind string, s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %s: %v", ErrInvalid, kind, err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}
