package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/oaiiae/contacts-api/datastores"
	"github.com/oaiiae/contacts-api/handlers"
	"github.com/oaiiae/contacts-api/identity"
	"github.com/oaiiae/contacts-api/router"
)

type ServerOptions struct {
	Host              string        `short:"H" doc:"host to listen on"                    default:""`
	Port              string        `short:"p" doc:"port to listen on"                    default:"8888"`
	ReadHeaderTimeout time.Duration `          doc:"time allowed to read request headers" default:"15s" name:"read-header-timeout"`
}

func NewServer(options *ServerOptions, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              options.Host + ":" + options.Port,
		ReadHeaderTimeout: options.ReadHeaderTimeout,
		Handler:           handler,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}

type RouterOptions struct {
	EndpointsPrefix string `doc:"mount endpoints at a prefix" default:"" name:"endpoints-prefix"`
}

type ContactsOptions struct {
	ContactsSeed bool   `doc:"start with sample contacts"                 default:"true"      name:"contacts-seed"`
	ContactsIDs  string `doc:"id assignment, monotonic or last (reuses ids)" default:"monotonic" name:"contacts-ids"`
}

func NewContactsService(options *ContactsOptions) (*datastores.ContactsService, error) {
	policy, err := datastores.ParseIDPolicy(options.ContactsIDs)
	if err != nil {
		return nil, err
	}
	var seed []*datastores.Contact
	if options.ContactsSeed {
		seed = datastores.SeedContacts()
	}
	return datastores.NewContactsService(datastores.NewContactsInmem(policy, seed...)), nil
}

type AuthOptions struct {
	AuthSecret       string        `doc:"HMAC key signing tokens, random when empty" default:""                             name:"auth-secret"`
	AuthIssuer       string        `doc:"issuer of tokens"                           default:"http://localhost:8888/openid" name:"auth-issuer"`
	AuthAudience     string        `doc:"audience of tokens"                         default:"embedded"                     name:"auth-audience"`
	AuthScope        string        `doc:"scope required to call the API"             default:"read"                         name:"auth-scope"`
	AuthClientID     string        `doc:"id of the registered client"                default:"client"                       name:"auth-client-id"`
	AuthClientSecret string        `doc:"secret of the registered client"            default:"secret"                       name:"auth-client-secret"`
	AuthTokenTTL     time.Duration `doc:"lifetime of issued tokens"                  default:"1h"                           name:"auth-token-ttl"`
	AuthRate         int           `doc:"token requests per second per host, 0 disables" default:"5"                       name:"auth-rate"`
	AuthBurst        int           `doc:"token request burst per host"               default:"10"                           name:"auth-burst"`
}

func NewIssuer(options *AuthOptions, metriks *metrics.Set, logger *slog.Logger) (*identity.Issuer, error) {
	key := []byte(options.AuthSecret)
	if len(key) == 0 {
		logger.Warn("no auth secret configured, tokens will not survive a restart")
		key = identity.RandomKey()
	}
	client, err := identity.NewClient(options.AuthClientID, options.AuthClientSecret, options.AuthScope)
	if err != nil {
		return nil, err
	}
	return identity.NewIssuer(identity.Options{
		Key:      key,
		Issuer:   options.AuthIssuer,
		Audience: options.AuthAudience,
		TTL:      options.AuthTokenTTL,
		Metrics:  metriks,
	}, client)
}

// BuildInfo describes the running binary.
type BuildInfo struct {
	Title    string
	Version  string
	Revision string
	Created  string
}

func NewRouter(
	options *RouterOptions,
	auth *AuthOptions,
	build BuildInfo,
	contacts *datastores.ContactsService,
	issuer *identity.Issuer,
	metriks *metrics.Set,
	logger *slog.Logger,
) http.Handler {
	buildinfoMetric := joinQuote("build_info{goversion=", runtime.Version(),
		",title=", build.Title,
		",version=", build.Version,
		",revision=", build.Revision,
		",created=", build.Created,
		"} 1\n")
	errorHandler := ctxlog{}.errorHandler(logger)
	return router.New(build.Title, build.Version,
		func(_ http.ResponseWriter, _ *http.Request) {},
		func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, buildinfoMetric)
			metriks.WritePrometheus(w)
			metrics.WriteProcessMetrics(w)
		},
		router.OptUseMiddleware(
			ctxlog{}.loggerMiddleware(logger),
			meterRequests(metriks),
			ctxlog{}.recoverMiddleware(logger),
		),
		router.OptGroup(options.EndpointsPrefix,
			router.OptGroup("/openid",
				(&handlers.RateLimit{Rate: rate.Limit(auth.AuthRate), Burst: auth.AuthBurst}).Use,
				router.OptAutoRegister(&handlers.OpenID{
					Issuer:       issuer,
					Scopes:       []string{auth.AuthScope},
					ErrorHandler: errorHandler,
				}),
			),
			router.OptGroup("",
				(&handlers.Bearer{Validator: issuer, Scope: auth.AuthScope, Realm: build.Title}).Use,
				router.OptAutoRegister(&handlers.Greeting{}),
				router.OptAutoRegister(&handlers.Contacts{
					Service:      contacts,
					ErrorHandler: errorHandler,
					Prefix:       options.EndpointsPrefix,
				}),
			),
		),
	)
}

// ctxlog is a [context.Context] key and acts as a virtual package for operations related to it.
type ctxlog struct{}

// loggerMiddleware returns a middleware that sets a [slog.Logger] in
// the [context.Context] and logs the request after it has terminated.
// Requests without an X-Request-Id header are given one.
func (key ctxlog) loggerMiddleware(parent *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		requestID := ctx.Header("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.SetHeader("X-Request-Id", requestID)
		logger := parent.With("x-request-id", requestID)

		start := time.Now()
		next(huma.WithValue(ctx, key, logger.WithGroup("op").With("id", ctx.Operation().OperationID)))

		logger.LogAttrs(context.Background(), slog.LevelInfo,
			joinSpace(ctx.Operation().Method, ctx.Operation().Path, ctx.Version().Proto),
			slog.String("from", ctx.RemoteAddr()),
			slog.String("ref", ctx.Header("Referer")),
			slog.String("ua", ctx.Header("User-Agent")),
			slog.Int("status", ctx.Status()),
			slog.Duration("dur", time.Since(start)),
		)
	}
}

// recoverMiddleware returns a middleware that recovers and logs the value from panic.
// Also sets status response to [http.StatusInternalServerError].
func (key ctxlog) recoverMiddleware(fallback *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		defer func() {
			v := recover()
			if v != nil {
				logger, ok := ctx.Context().Value(key).(*slog.Logger)
				if !ok {
					logger = fallback
				}
				logger.LogAttrs(context.Background(), slog.LevelError, "panic occurred", slog.Any("recovered", v))
				ctx.SetStatus(http.StatusInternalServerError)
			}
		}()
		next(ctx)
	}
}

// errorHandler returns a function that gets the [slog.Logger] from [context.Context] and logs the error.
func (key ctxlog) errorHandler(fallback *slog.Logger) func(context.Context, error) {
	return func(ctx context.Context, err error) {
		level := slog.LevelError
		attrs := []slog.Attr{slog.Any("err", err)}

		var statusErr huma.StatusError
		if errors.As(err, &statusErr) {
			switch statusErr.GetStatus() / 100 {
			case 5: //nolint: mnd // 5XX HTTP Status Codes
				level = slog.LevelError
			case 4: //nolint: mnd // 4XX HTTP Status Codes
				level = slog.LevelWarn
			case 3: //nolint: mnd // 3XX HTTP Status Codes
				level = slog.LevelInfo
			}
			attrs = append(attrs, slog.Int("status", statusErr.GetStatus()))
		}
		if claims, ok := handlers.ClaimsFromContext(ctx); ok {
			attrs = append(attrs, slog.String("client_id", claims.ClientID))
		}

		logger, ok := ctx.Value(key).(*slog.Logger)
		if !ok {
			logger = fallback
		}
		logger.LogAttrs(context.Background(), level, "error occurred", attrs...)
	}
}

func meterRequests(set *metrics.Set) func(huma.Context, func(huma.Context)) {
	type ref struct {
		*metrics.Counter
		*metrics.PrometheusHistogram
	}

	refs := sync.Map{}
	refsMu := sync.Mutex{}
	buckets := metrics.ExponentialBuckets(1e-3, 5, 6) //nolint: mnd // arbitrary

	return func(ctx huma.Context, next func(huma.Context)) {
		op, start := ctx.Operation(), time.Now()
		next(ctx)

		uid := op.OperationID + strconv.Itoa(ctx.Status())
		val, ok := refs.Load(uid)
		if !ok {
			refsMu.Lock()
			val, ok = refs.Load(uid)
			if !ok {
				labels := joinQuote("{method=", op.Method, ",path=", op.Path, ",status=", strconv.Itoa(ctx.Status()), "}") //nolint: golines
				val = ref{
					set.NewCounter("http_requests_total" + labels),
					set.NewPrometheusHistogramExt("http_request_duration_seconds"+labels, buckets),
				}
				refs.Store(uid, val)
			}
			refsMu.Unlock()
		}
		valref := val.(ref) //nolint: errcheck // always true
		valref.Counter.Inc()
		valref.PrometheusHistogram.UpdateDuration(start)
	}
}

// joinQuote is [strings.Join] with " as separator.
func joinQuote(elems ...string) string { return strings.Join(elems, `"`) }

// joinSpace is [strings.Join] with space as separator.
func joinSpace(elems ...string) string { return strings.Join(elems, ` `) }
