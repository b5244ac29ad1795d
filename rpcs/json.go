package rpcs

import (
	"mime"
	"net/http"

	"github.com/pkg/errors"

	errs "github.com/eaugeas/keyset/errors"
	"github.com/eaugeas/keyset/logs"
)

var (
	ErrHttpContentLengthMissing = errors.New("content-length header missing in request")
	ErrHttpContentLengthExceeds = errors.New("content-length value exceeds request limit")
	ErrHttpContentTypeNotJSON   = errors.New("content-type has unexpected value")
	ErrHttpHandleExpectsNoBody  = errors.New("http handle expects no request body")
	ErrHttpDecodeJSON           = errors.New("error decoding body as json")
	ErrHttpDecodeQuery          = errors.New("error decoding query")
)

const defaultBodyLimit = 1 << 14

// HttpJsonHandler decodes JSON request bodies, or the query of requests
// without a body, into the entities the Handler expects
type HttpJsonHandler struct {
	limit   uint
	decoder JsonDecoder
	handler Handler
	logger  logs.Logger
	factory EntityFactory
}

type HttpJsonHandlerProperties struct {
	// Limit is the maximum size of a body in bytes. Defaults to 16KB
	Limit uint

	Handler Handler

	Logger logs.Logger

	// Factory creates the entity each request is decoded into
	Factory EntityFactory
}

// NewHttpJsonHandler creates a new HttpJsonHandler. It panics if any
// of the required properties is missing
func NewHttpJsonHandler(properties HttpJsonHandlerProperties) *HttpJsonHandler {
	switch {
	case properties.Handler == nil:
		panic("handler must be set")
	case properties.Logger == nil:
		panic("logger must be set")
	case properties.Factory == nil:
		panic("factory must be set")
	}

	limit := properties.Limit
	if limit == 0 {
		limit = defaultBodyLimit
	}

	return &HttpJsonHandler{
		limit:   limit,
		handler: properties.Handler,
		logger:  properties.Logger.ForClass("http", "HttpJsonHandler"),
		factory: properties.Factory,
	}
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

func badRequest(cause error) *HttpError {
	return &HttpError{Cause: cause, StatusCode: http.StatusBadRequest, Message: "Bad Request"}
}

// ServeHTTP is the implementation of HttpMiddleware for HttpJsonHandler
func (h *HttpJsonHandler) ServeHTTP(req *http.Request) (interface{}, error) {
	length := req.ContentLength
	switch {
	case length < 0:
		return nil, badRequest(ErrHttpContentLengthMissing)
	case uint64(length) > uint64(h.limit):
		return nil, badRequest(ErrHttpContentLengthExceeds)
	case length > 0 && !isJSON(req.Header.Get("Content-Type")):
		return nil, badRequest(ErrHttpContentTypeNotJSON)
	}

	entity := h.factory.Create()
	if entity == nil {
		if length > 0 {
			return nil, badRequest(ErrHttpHandleExpectsNoBody)
		}
		return h.handler.Handle(req.Context(), nil)
	}

	if length > 0 {
		err := h.decoder.DecodeWithLimit(req.Body, entity, ReadLimitProps{
			Limit:        length,
			FailOnExceed: true,
		})
		if err != nil {
			h.logger.Debug(req.Context(), "failed to decode json", logs.MapFields{
				"path":           req.URL.EscapedPath(),
				"method":         req.Method,
				"content_length": length,
				"err":            err.Error(),
			})
			return nil, badRequest(ErrHttpDecodeJSON)
		}
	} else if query, ok := entity.(QueryEntity); ok {
		if err := query.FromQuery(req.URL.Query()); err != nil {
			return nil, badRequest(errs.New(errs.ErrorCodeBadRequest, err.Error()))
		}
	}

	return h.handler.Handle(req.Context(), entity)
}

// JsonHandlerFactory makes HttpJsonHandlers that accept bodies of up
// to limit bytes
func JsonHandlerFactory(limit uint, logger logs.Logger) HttpHandlerFactory {
	return HttpHandlerFactoryFunc(func(factory EntityFactory, handler Handler) HttpMiddleware {
		return NewHttpJsonHandler(HttpJsonHandlerProperties{
			Limit:   limit,
			Handler: handler,
			Logger:  logger,
			Factory: factory,
		})
	})
}
