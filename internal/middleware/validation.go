package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/kenko/clinic-api/internal/model"
)

var customMessages = map[string]string{
	"required":           "is required",
	"min":                "is too small",
	"max":                "is too large",
	"appointment_status": "is not a known appointment status",
}

// RegisterValidators installs the custom binding tags on gin's validator and
// reports fields by their JSON names.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return v.RegisterValidation("appointment_status", func(fl validator.FieldLevel) bool {
		_, err := model.ParseAppointmentStatus(fl.Field().String())
		return err == nil
	})
}

// DescribeBindError renders binding failures as "field message; ..." text.
func DescribeBindError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}
	parts := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msg, ok := customMessages[e.Tag()]
		if !ok {
			msg = "failed " + e.Tag() + " validation"
		}
		parts = append(parts, e.Field()+" "+msg)
	}
	return strings.Join(parts, "; ")
}
