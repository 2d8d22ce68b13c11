// Package server wires the SNS/SQS wire route and the verification API
// onto an echo.Echo instance. cmd/mockbusd's main.go owns process
// bootstrap (config, logger, telemetry); this package owns route wiring
// and the HTTP-facing handlers themselves.
package server

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	otelecho "go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/mockbus/pubsub-capture/pkg/api/middleware"
	"github.com/mockbus/pubsub-capture/pkg/capture"
	"github.com/mockbus/pubsub-capture/pkg/capture/cerr"
	apperrors "github.com/mockbus/pubsub-capture/pkg/errors"
	"github.com/mockbus/pubsub-capture/pkg/protocol"
)

// Config is the subset of the process config this package needs to wire
// routes. cmd/mockbusd's top-level config nests this as its Server field,
// alongside the logger and telemetry configs.
type Config struct {
	Capacity           int    `env:"CAPACITY" env-default:"1000" validate:"required,gt=0"`
	VerificationPrefix string `env:"VERIFICATION_PREFIX" env-default:"/messages"`
	ServiceName        string `env:"OTEL_SERVICE_NAME" env-default:"mockbusd"`
}

// New builds an echo.Echo serving the wire route at POST / and the
// verification routes under cfg.VerificationPrefix, backed by a capture
// store of cfg.Capacity.
func New(cfg Config) (*echo.Echo, error) {
	store, err := capture.New(cfg.Capacity)
	if err != nil {
		return nil, err
	}
	return newWithStore(cfg, store), nil
}

// newWithStore is split out from New so tests can inject a store with a
// specific capacity or pre-seeded records.
func newWithStore(cfg Config, store *capture.Store) *echo.Echo {
	instrumented := capture.NewInstrumentedStore(store)
	adapter := protocol.NewAdapter(instrumented)

	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware(cfg.ServiceName))
	e.Use(echo.WrapMiddleware(middleware.RequestIDMiddleware()))

	e.POST("/", wireHandler(adapter))

	v := e.Group(cfg.VerificationPrefix)
	v.Use(echo.WrapMiddleware(middleware.SecureJSONMiddleware()))
	v.GET("", listHandler(store))
	v.GET("/:id", getHandler(instrumented))
	v.DELETE("", clearHandler(instrumented))

	return e
}

func wireHandler(adapter *protocol.Adapter) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		defer req.Body.Close()
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return c.String(http.StatusBadRequest, "failed to read request body")
		}

		amzTarget := req.Header.Get("X-Amz-Target")
		resp := adapter.Handle(req.Context(), amzTarget, body)

		return c.Blob(resp.Status, resp.ContentType, resp.Body)
	}
}

func listHandler(store *capture.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		filter := capture.ListFilter{
			Topic:    c.QueryParam("topic"),
			Contains: c.QueryParam("contains"),
		}
		if since := c.QueryParam("since"); since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				return c.JSON(http.StatusBadRequest, errorBody{Code: "InvalidParameter", Message: "since must be RFC3339"})
			}
			filter.Since = t
		}
		if until := c.QueryParam("until"); until != "" {
			t, err := time.Parse(time.RFC3339, until)
			if err != nil {
				return c.JSON(http.StatusBadRequest, errorBody{Code: "InvalidParameter", Message: "until must be RFC3339"})
			}
			filter.Until = t
		}

		records, err := capture.List(store, filter)
		if err != nil {
			return jsonError(c, err)
		}
		return c.JSON(http.StatusOK, records)
	}
}

func getHandler(store *capture.InstrumentedStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		record, err := store.GetByID(c.Request().Context(), c.Param("id"))
		if err != nil {
			return jsonError(c, err)
		}
		return c.JSON(http.StatusOK, record)
	}
}

func clearHandler(store *capture.InstrumentedStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		store.Clear(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func jsonError(c echo.Context, err error) error {
	code := apperrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case cerr.CodeNotFound:
		status = http.StatusNotFound
	case cerr.CodeNullTopic, cerr.CodeNullMessageID:
		status = http.StatusBadRequest
	}
	return c.JSON(status, errorBody{Code: code, Message: err.Error()})
}

