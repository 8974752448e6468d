package service

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/goji/httpauth"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/jinzhu/configor"
	"github.com/rs/cors"

	"github.com/theplant/tracekit/errornotifier"
	"github.com/theplant/tracekit/log"
	"github.com/theplant/tracekit/monitoring"
	"github.com/theplant/tracekit/server"
)

// middleware assembles the service's request pipeline on top of
// server.DefaultMiddleware: basic auth and CORS at the edge, then
// request metrics and panic notification, both annotated with the ids
// of the transaction that TraceRequest opens further in.
func middleware(ctx context.Context) (server.Middleware, io.Closer, error) {
	logger := log.ForceContext(ctx)

	return server.Compose(
		httpAuthMiddleware(logger),
		corsMiddleware(logger),
		monitoring.WithMonitor(monitoring.ForceContext(ctx)),
		errornotifier.Recover(errornotifier.ForceContext(ctx)),
		server.DefaultMiddleware(logger),
	), noopCloser, nil
}

// NoopCloser is an adapter from `func()` to io.Closer, that calls
// given function and returns nil
type NoopCloser func()

// Close is part of io.Closer
func (f NoopCloser) Close() error {
	f()
	return nil
}

// FuncCloser aggregates io.Closers into a single io.Closer that
// collects errors from each io.Closer function in the array when
// closed.
type FuncCloser []io.Closer

// Close is part of io.Closer
func (f FuncCloser) Close() error {
	var err error
	for _, c := range f {
		if e := c.Close(); e != nil {
			err = multierror.Append(err, e)
		}
	}

	return err
}

////////////////////////////////////////////////////////////
// CORS

type corsConfig struct {
	RawAllowedOrigins string
	AllowCredentials  bool
}

func corsMiddleware(logger log.Logger) server.Middleware {
	config := corsConfig{}

	err := configor.New(&configor.Config{ENVPrefix: "CORS"}).Load(&config)
	if err != nil {
		panic(err)
	}

	if config.RawAllowedOrigins == "" {
		logger.Warn().Log(
			"msg", "not enabling CORS middleware, CORS configuration is blank",
			"raw_allowed_origins", config.RawAllowedOrigins,
			"allowed_credentials", config.AllowCredentials,
		)
		return server.IdMiddleware
	}

	allowedOrigins := strings.Split(config.RawAllowedOrigins, ",")
	for i, allowedOrigin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(allowedOrigin)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: config.AllowCredentials,
	})

	logger.Info().Log(
		"msg", "enabling CORS middleware",
		"allowed_origins", strings.Join(allowedOrigins, ","),
		"allow_credentials", config.AllowCredentials,
	)

	return c.Handler
}

////////////////////////////////////////////////////////////
// HTTP Basic Auth

type httpAuthConfig struct {
	Username string
	Password string

	// UserAgentWhitelistRegexp and PathWhitelistRegexp exempt matching
	// requests from authentication, for health checks and uptime
	// monitors that cannot send credentials.
	UserAgentWhitelistRegexp string
	PathWhitelistRegexp      string
}

func httpAuthMiddleware(logger log.Logger) server.Middleware {
	config := httpAuthConfig{}

	err := configor.New(&configor.Config{ENVPrefix: "BASICAUTH"}).Load(&config)
	if err != nil {
		panic(err)
	}

	if config.Username == "" {
		logger.Warn().Log(
			"msg", "not enabling HTTP basic auth middleware, username is blank",
		)
		return server.IdMiddleware
	}

	var userAgentRe, pathRe *regexp.Regexp
	if config.UserAgentWhitelistRegexp != "" {
		userAgentRe, err = regexp.Compile(config.UserAgentWhitelistRegexp)
		if err != nil {
			panic(err)
		}
	}
	if config.PathWhitelistRegexp != "" {
		pathRe, err = regexp.Compile(config.PathWhitelistRegexp)
		if err != nil {
			panic(err)
		}
	}

	logger.Info().Log(
		"msg", "enabling HTTP basic auth middleware",
		"username", config.Username,
		"user_agent_whitelist_regexp", config.UserAgentWhitelistRegexp,
		"path_whitelist_regexp", config.PathWhitelistRegexp,
	)

	auth := httpauth.SimpleBasicAuth(config.Username, config.Password)

	return func(h http.Handler) http.Handler {
		authed := auth(h)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if (userAgentRe != nil && userAgentRe.MatchString(r.UserAgent())) ||
				(pathRe != nil && pathRe.MatchString(r.URL.Path)) {
				h.ServeHTTP(w, r)
				return
			}
			authed.ServeHTTP(w, r)
		})
	}
}
