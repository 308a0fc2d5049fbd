package handler

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/dumeirei/member-ledger/internal/common/utils"
)

var registerOnce sync.Once

// RegisterValidators 向 gin 的校验器注册自定义标签，可重复调用
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return utils.ValidatePhone(fl.Field().String())
		})
	})
}
