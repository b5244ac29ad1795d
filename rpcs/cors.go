package rpcs

import (
	"net/http"

	"github.com/rs/cors"
)

// HttpCorsPreProcessorProps configure how cross origin requests
// are checked. The fields follow cors.Options
type HttpCorsPreProcessorProps struct {
	// Enabled if false every request is passed on unchecked
	Enabled bool

	// AllowedOrigins may contain "*" or one wildcard per origin
	AllowedOrigins []string

	AllowedMethods []string

	// AllowedHeaders always includes "Origin"
	AllowedHeaders []string

	ExposedHeaders []string

	// MaxAge in seconds a preflight response can be cached
	MaxAge int

	AllowCredentials bool
}

// HttpCorsPreProcessor checks cross origin requests, answering
// preflight requests itself
type HttpCorsPreProcessor struct {
	cors    *cors.Cors
	enabled bool
}

// NewHttpCorsPreProcessor creates a new instance of a Cors Http PreProcessor
func NewHttpCorsPreProcessor(props HttpCorsPreProcessorProps) *HttpCorsPreProcessor {
	return &HttpCorsPreProcessor{
		cors: cors.New(cors.Options{
			AllowedOrigins:   props.AllowedOrigins,
			AllowedMethods:   props.AllowedMethods,
			AllowedHeaders:   props.AllowedHeaders,
			ExposedHeaders:   props.ExposedHeaders,
			MaxAge:           props.MaxAge,
			AllowCredentials: props.AllowCredentials,
		}),
		enabled: props.Enabled,
	}
}

// ServeHTTP is the implementation of HttpPreProcessor for HttpCorsPreProcessor
func (h *HttpCorsPreProcessor) ServeHTTP(w http.ResponseWriter, req *http.Request) (bool, *http.Request) {
	if !h.enabled {
		return true, req
	}

	var nextReq *http.Request
	h.cors.ServeHTTP(w, req, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		nextReq = r
	})

	return nextReq != nil, nextReq
}
