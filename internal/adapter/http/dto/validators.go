package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	phoneIdentityRe = regexp.MustCompile(`^\+[0-9]{9,16}$`)
	ethAddressRe    = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("phone_identity", validatePhoneIdentity)
		_ = v.RegisterValidation("eth_address", validateEthAddress)
	}
}

// validatePhoneIdentity requires the normalized form: a plus sign followed
// by 9 to 16 digits.
func validatePhoneIdentity(fl validator.FieldLevel) bool {
	return phoneIdentityRe.MatchString(fl.Field().String())
}

// validateEthAddress requires a 0x-prefixed 20-byte hex address.
func validateEthAddress(fl validator.FieldLevel) bool {
	return ethAddressRe.MatchString(fl.Field().String())
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
