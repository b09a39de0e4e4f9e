package handlers

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Rahul-7375/attendance-cist/schedule"
)

// RegisterValidators installs the custom binding rules used by the request
// types. Call once at startup.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			_, ok := schedule.ParseStartMinutes(fl.Field().String())
			return ok
		})
	}
}
