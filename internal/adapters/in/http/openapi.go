package http

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/labstack/echo/v4"
	"github.com/swaggo/swag"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// LoadOpenAPI parses and validates the embedded API description.
func LoadOpenAPI() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPIDocument)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err = doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return doc, nil
}

// RequestValidator rejects requests that do not match the OpenAPI document.
// Paths the document does not describe pass through untouched so that
// /ws, /health, /metrics and /swagger keep working.
func RequestValidator(doc *openapi3.T) (echo.MiddlewareFunc, error) {
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}

	options := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()
			if !strings.HasPrefix(req.URL.Path, apiPrefix) {
				return next(ctx)
			}

			route, pathParams, findErr := router.FindRoute(req)
			switch {
			case isRouteError(findErr, routers.ErrPathNotFound.(*routers.RouteError)):
				return next(ctx)
			case isRouteError(findErr, routers.ErrMethodNotAllowed.(*routers.RouteError)):
				return echo.NewHTTPError(http.StatusMethodNotAllowed, findErr.Error())
			case findErr != nil:
				return echo.NewHTTPError(http.StatusBadRequest, findErr.Error())
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    req,
				PathParams: pathParams,
				Route:      route,
				Options:    options,
			}
			if validateErr := openapi3filter.ValidateRequest(req.Context(), input); validateErr != nil {
				return badRequest(ctx, validationMessage(validateErr))
			}
			return next(ctx)
		}
	}, nil
}

// isRouteError matches both the shared sentinel and routers that return a
// fresh RouteError carrying the same reason.
func isRouteError(err error, target *routers.RouteError) bool {
	if errors.Is(err, target) {
		return true
	}
	var routeErr *routers.RouteError
	return errors.As(err, &routeErr) && routeErr.Reason == target.Reason
}

func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			return fmt.Sprintf("invalid parameter %s: %v", reqErr.Parameter.Name, reqErr.Err)
		}
		if reqErr.Err != nil {
			return "invalid request body: " + reqErr.Err.Error()
		}
		return reqErr.Reason
	}
	return err.Error()
}

var registerSwagger sync.Once

type swaggerDoc struct {
	json string
}

func (d swaggerDoc) ReadDoc() string { return d.json }

// RegisterSwagger publishes the document in the swag registry that
// echo-swagger serves from /swagger/doc.json. Only the first call registers.
func RegisterSwagger(doc *openapi3.T) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode openapi document: %w", err)
	}
	registerSwagger.Do(func() {
		swag.Register(swag.Name, swaggerDoc{json: string(raw)})
	})
	return nil
}
