package handler

import (
	"reflect"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"bikerental/internal/domain"
)

var registerOnce sync.Once

// RegisterValidators installs the request validation rules used by the
// handlers on gin's validator engine. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		// Money fields are validated as numbers, e.g. `binding:"gt=0"`.
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})

		_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
			return domain.PaymentMethod(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("gateway_method", func(fl validator.FieldLevel) bool {
			return domain.PaymentMethod(fl.Field().String()).IsGateway()
		})
		_ = v.RegisterValidation("payment_target", func(fl validator.FieldLevel) bool {
			t := domain.PaymentTarget(fl.Field().String())
			return t == domain.PaymentTargetBooking || t == domain.PaymentTargetDamage
		})
		_ = v.RegisterValidation("rate_type", func(fl validator.FieldLevel) bool {
			return domain.RateType(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("flag_reason", func(fl validator.FieldLevel) bool {
			return domain.FlagReason(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("listing_status", func(fl validator.FieldLevel) bool {
			return domain.ListingStatus(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return domain.Role(fl.Field().String()).Valid()
		})
	})
}
