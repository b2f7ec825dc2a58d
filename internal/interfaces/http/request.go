package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
)

// HeaderActor identifica a quien registra el movimiento. Vacío = "system".
const HeaderActor = "X-Actor"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Mensajes con el nombre JSON del campo.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// parseBody decodifica el JSON y valida las etiquetas `validate`.
// Si devuelve false la respuesta de error ya está escrita y el handler debe retornar err.
func parseBody(c *fiber.Ctx, out any) (bool, error) {
	if err := c.BodyParser(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := getValidator().Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
			}
			err = fmt.Errorf("%w: %s", domain.ErrInvalidArgument, strings.Join(msgs, ", "))
		} else {
			err = fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
		}
		return false, writeError(c, err)
	}
	return true, nil
}

// actor devuelve el actor del header X-Actor (el motor aplica "system" si viene vacío).
func actor(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get(HeaderActor))
}
