package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// handshakePayloadRe matches unpadded base64url, the transport alphabet of
// encoded requests and receipts.
var handshakePayloadRe = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

const (
	maxPayloadLen     = 16 << 10
	maxDisplayNameLen = 128
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("handshake_payload", validateHandshakePayload)
		_ = v.RegisterValidation("display_name", validateDisplayName)
	}
}

func validateHandshakePayload(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return len(s) <= maxPayloadLen && handshakePayloadRe.MatchString(s)
}

// validateDisplayName accepts printable UTF-8 up to 128 bytes.
func validateDisplayName(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) > maxDisplayNameLen || !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer. Fields tagged
// `sanitize:"-"` are left alone.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() || rt.Field(i).Tag.Get("sanitize") == "-" {
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
