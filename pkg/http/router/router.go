package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/lintang-b-s/transitx/pkg/http/router/controllers"
	router_helper "github.com/lintang-b-s/transitx/pkg/http/router/routerhelper"
	http_server "github.com/lintang-b-s/transitx/pkg/http/server"

	"github.com/julienschmidt/httprouter"
	"github.com/justinas/alice"
	"github.com/rs/cors"
	"go.uber.org/zap"

	httpSwagger "github.com/swaggo/http-swagger"
)

type API struct {
	log *zap.Logger
}

func NewAPI(log *zap.Logger) *API {
	return &API{log: log}
}

//	@title			transitx API
//	@version		1.0
//	@description	Public transport journey planner (RAPTOR) with GTFS-realtime updates.

//	@contact.name	Lintang Birda Saputra
//	@contact.url	_
//	@contact.email	lintang.birda.saputra@mail.ugm.ac.id

//	@license.name	BSD License
//	@license.url	https://opensource.org/license/bsd-2-clause

// @host		localhost
// @BasePath	/api
func (api *API) Handler(
	config http_server.Config,
	log *zap.Logger,

	useRateLimit bool,
	plannerService controllers.PlannerService,
	metricsHandler http.Handler,
) http.Handler {
	router := httprouter.New()

	corsHandler := cors.New(cors.Options{ //nolint:gocritic // ignore
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300, //nolint:mnd // ignore
	})

	router.GET("/doc/*any", swaggerHandler)
	if metricsHandler != nil {
		router.Handler(http.MethodGet, "/metrics", metricsHandler)
	}

	group := router_helper.NewRouteGroup(router, "/api")

	plannerRoutes := controllers.New(plannerService, log)
	plannerRoutes.Routes(group)

	mwChain := []alice.Constructor{corsHandler.Handler, EnforceJSONHandler, api.recoverPanic,
		RealIP, Heartbeat("healthz"), Logger(log), Labels}
	if useRateLimit {
		mwChain = append(mwChain, Limit(config.RateLimitRPS, config.RateLimitBurst))
	}
	return alice.New(mwChain...).Then(router)
}

// Run serves the api until ctx is canceled.
func (api *API) Run(
	ctx context.Context,
	config http_server.Config,
	log *zap.Logger,

	useRateLimit bool,
	plannerService controllers.PlannerService,
	metricsHandler http.Handler,
) error {
	log.Info("Run httprouter API")

	handler := api.Handler(config, log, useRateLimit, plannerService, metricsHandler)
	srv := http_server.New(ctx, handler, config)
	log.Info(fmt.Sprintf("API run on port %d", config.Port))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		log.Info("HTTP server stopped", zap.Error(err))
		return err
	case <-ctx.Done():
		log.Info("Context canceled, shutting down server")
		if err := srv.Shutdown(context.Background()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func swaggerHandler(res http.ResponseWriter, req *http.Request, p httprouter.Params) {
	httpSwagger.WrapHandler(res, req)
}
