package middleware

import (
	"log"
	"net/http"
	"os"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const redacted = "REDACTED"

// Logger is chi's request logger with the values of the named query
// parameters masked in the access line. The request passed downstream is
// left untouched.
func Logger(params ...string) func(http.Handler) http.Handler {
	return NewLogger(log.New(os.Stdout, "", log.LstdFlags), params...)
}

// NewLogger is Logger writing to logger.
func NewLogger(logger chiMiddleware.LoggerInterface, params ...string) func(http.Handler) http.Handler {
	return chiMiddleware.RequestLogger(&redactingFormatter{
		inner:  &chiMiddleware.DefaultLogFormatter{Logger: logger, NoColor: true},
		params: params,
	})
}

type redactingFormatter struct {
	inner  chiMiddleware.LogFormatter
	params []string
}

func (f *redactingFormatter) NewLogEntry(r *http.Request) chiMiddleware.LogEntry {
	return f.inner.NewLogEntry(redactQuery(r, f.params))
}

// redactQuery returns r, or a shallow copy with a masked URL when any of
// params is present in the query string.
func redactQuery(r *http.Request, params []string) *http.Request {
	if r.URL == nil || r.URL.RawQuery == "" {
		return r
	}
	q := r.URL.Query()
	found := false
	for _, p := range params {
		if vals, ok := q[p]; ok {
			for i := range vals {
				vals[i] = redacted
			}
			found = true
		}
	}
	if !found {
		return r
	}

	u := *r.URL
	u.RawQuery = q.Encode()
	clone := *r
	clone.URL = &u
	clone.RequestURI = u.RequestURI()
	return &clone
}
