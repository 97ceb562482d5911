package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/nekogravitycat/blog-backend/internal/pkg/apperror"
)

// Part selects which part of the request a schema applies to.
type Part int

const (
	FromBody Part = iota
	FromQuery
	FromParams
)

func (p Part) String() string {
	switch p {
	case FromBody:
		return "body"
	case FromQuery:
		return "query"
	case FromParams:
		return "params"
	default:
		return "unknown"
	}
}

// Defaulter is implemented by body schemas that fill in defaults before validation.
// Query and path schemas use the `default=` option of their form tag instead.
type Defaulter interface {
	ApplyDefaults()
}

// ValidationPrefix starts the message of every validation failure.
const ValidationPrefix = "Validation error: "

var (
	setupOnce  sync.Once
	translator ut.Translator
)

// setup teaches gin's validator to report fields by their wire name and to
// render English messages.
func setup() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form", "uri"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})

		locale := en.New()
		translator, _ = ut.New(locale, locale).GetTranslator("en")
		_ = entranslations.RegisterDefaultTranslations(v, translator)
	})
}

// Validate returns a middleware that decodes part of the request into a T,
// applies defaults, validates every field and stores the result for the handler
// (see Body, Query and Params). Unknown fields are dropped. On failure a 400
// listing every violation is forwarded and the handler never runs.
func Validate[T any](part Part) gin.HandlerFunc {
	setup()

	return func(c *gin.Context) {
		var v T
		if err := bind(c, part, &v); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set(storeKey(part), v)
		c.Next()
	}
}

// Body returns the value stored by Validate[T](FromBody).
func Body[T any](c *gin.Context) T { return stored[T](c, FromBody) }

// Query returns the value stored by Validate[T](FromQuery).
func Query[T any](c *gin.Context) T { return stored[T](c, FromQuery) }

// Params returns the value stored by Validate[T](FromParams).
func Params[T any](c *gin.Context) T { return stored[T](c, FromParams) }

func stored[T any](c *gin.Context, part Part) T {
	if v, ok := c.Get(storeKey(part)); ok {
		if t, ok := v.(T); ok {
			return t
		}
	}
	var zero T
	return zero
}

func storeKey(part Part) string {
	return "request.validated." + part.String()
}

func bind(c *gin.Context, part Part, ptr any) error {
	switch part {
	case FromBody:
		raw, err := readBody(c)
		if err != nil {
			return apperror.BadRequest("Unable to read request body")
		}
		if len(bytes.TrimSpace(raw)) > 0 {
			if err := json.Unmarshal(raw, ptr); err != nil {
				return decodeError(err)
			}
		}
	case FromQuery:
		if err := binding.MapFormWithTag(ptr, c.Request.URL.Query(), "form"); err != nil {
			return apperror.BadRequest(ValidationPrefix + "invalid query parameter")
		}
	case FromParams:
		params := make(map[string][]string, len(c.Params))
		for _, p := range c.Params {
			params[p.Key] = []string{p.Value}
		}
		if err := binding.MapFormWithTag(ptr, params, "uri"); err != nil {
			return apperror.BadRequest(ValidationPrefix + "invalid path parameter")
		}
	default:
		return apperror.Internal(fmt.Errorf("unknown request part %d", part), "")
	}

	if d, ok := ptr.(Defaulter); ok {
		d.ApplyDefaults()
	}

	if err := binding.Validator.ValidateStruct(ptr); err != nil {
		return validationError(err)
	}
	return nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperror.BadRequest(fmt.Sprintf("%s%s must be a %s", ValidationPrefix, typeErr.Field, typeErr.Type.Kind()))
	}
	return apperror.BadRequest("Malformed JSON body")
}

// validationError joins every violation into one message.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.BadRequest(ValidationPrefix + err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if translator != nil {
			msgs = append(msgs, fe.Translate(translator))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return apperror.BadRequest(ValidationPrefix + strings.Join(msgs, ", "))
}
