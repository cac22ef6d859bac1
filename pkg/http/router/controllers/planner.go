package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/julienschmidt/httprouter"
	"github.com/lintang-b-s/transitx/pkg"
	"github.com/lintang-b-s/transitx/pkg/engine/routing"
	"github.com/lintang-b-s/transitx/pkg/geo"
	helper "github.com/lintang-b-s/transitx/pkg/http/router/routerhelper"
	"github.com/lintang-b-s/transitx/pkg/http/usecases"
	"go.uber.org/zap"
)

type plannerAPI struct {
	plannerService PlannerService
	log            *zap.Logger
	validate       *validator.Validate
	trans          ut.Translator
	clock          func() time.Time
}

func New(plannerService PlannerService, log *zap.Logger) *plannerAPI {
	validate := validator.New()
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	return &plannerAPI{
		plannerService: plannerService,
		log:            log,
		validate:       validate,
		trans:          trans,
		clock:          time.Now,
	}
}

func (api *plannerAPI) Routes(group *helper.RouteGroup) {
	group.GET("/plan", api.plan)
	group.GET("/stops/nearby", api.nearbyStops)
}

// plan
//
//	@Summary		plan a journey on the public transport network
//	@Description	origin and destination are stop ids or coordinates. time is RFC3339 and defaults to now.
//	@Tags			planner
//	@Produce		json
//	@Param			from_stop		query	string	false	"origin stop point or stop area id"
//	@Param			from_lat		query	number	false	"origin latitude"
//	@Param			from_lon		query	number	false	"origin longitude"
//	@Param			to_stop			query	string	false	"destination stop point or stop area id"
//	@Param			to_lat			query	number	false	"destination latitude"
//	@Param			to_lon			query	number	false	"destination longitude"
//	@Param			time			query	string	false	"departure or arrival time"
//	@Param			arrive_by		query	bool	false	"time is the latest arrival"
//	@Param			strategy		query	string	false	"first, naive or full"
//	@Success		200				{object}	planResponse
//	@Router			/plan [get]
func (api *plannerAPI) plan(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	request, err := api.parsePlanRequest(r.URL.Query())
	if err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := api.validateStruct(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	query := usecases.PlanQuery{
		From:         place(request.FromStop, request.FromLat, request.FromLon),
		To:           place(request.ToStop, request.ToLat, request.ToLon),
		Via:          request.ViaStop,
		Time:         request.Time,
		ArriveBy:     request.ArriveBy,
		MaxTransfers: request.MaxTransfers,
		WalkSpeed:    request.WalkSpeed,
		Wheelchair:   request.Wheelchair,
	}
	// the validator already restricted these to known names
	query.Mode, _ = pkg.GetTransportMode(request.Mode)
	query.Optimise, _ = pkg.GetOptimise(request.Optimise)
	query.Strategy, _ = routing.GetStrategy(request.Strategy)

	plan, err := api.plannerService.Plan(r.Context(), query)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	tt := api.plannerService.GetTimetable()
	resp := NewPlanResponse(tt, plan, plan.Filter(plan.Req.Optimise),
		geo.NewCoordinate(query.From.Lat, query.From.Lon), geo.NewCoordinate(query.To.Lat, query.To.Lon),
		helper.RequestID(r.Context()))

	headers := make(http.Header)
	if err := api.writeJSON(w, http.StatusOK, envelope{"data": resp}, headers); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}

// nearbyStops
//
//	@Summary	stop points around a coordinate, closest first
//	@Tags		planner
//	@Produce	json
//	@Param		lat		query	number	true	"latitude"
//	@Param		lon		query	number	true	"longitude"
//	@Param		radius	query	number	false	"search radius in km, default 0.5"
//	@Success	200		{array}	nearbyStopResponse
//	@Router		/stops/nearby [get]
func (api *plannerAPI) nearbyStops(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var (
		request nearbyStopsRequest
		err     error
	)

	query := r.URL.Query()

	request.Lat, err = strconv.ParseFloat(query.Get("lat"), 64)
	if err != nil {
		api.BadRequestResponse(w, r, errors.New("lat is required and must be a valid float"))
		return
	}
	request.Lon, err = strconv.ParseFloat(query.Get("lon"), 64)
	if err != nil {
		api.BadRequestResponse(w, r, errors.New("lon is required and must be a valid float"))
		return
	}
	request.Radius = 0.5
	if query.Has("radius") {
		request.Radius, err = strconv.ParseFloat(query.Get("radius"), 64)
		if err != nil {
			api.BadRequestResponse(w, r, errors.New("radius must be a valid float"))
			return
		}
	}
	if err := api.validateStruct(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	cands := api.plannerService.NearbyStops(request.Lat, request.Lon, request.Radius)

	headers := make(http.Header)
	if err := api.writeJSON(w, http.StatusOK,
		envelope{"data": NewNearbyStopsResponse(api.plannerService.GetTimetable(), cands)}, headers); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
}

func (api *plannerAPI) parsePlanRequest(query url.Values) (planRequest, error) {
	request := planRequest{
		FromStop:     query.Get("from_stop"),
		ToStop:       query.Get("to_stop"),
		ViaStop:      query.Get("via_stop"),
		Time:         api.clock(),
		MaxTransfers: pkg.DEFAULT_MAX_TRANSFERS,
		WalkSpeed:    pkg.DEFAULT_WALK_SPEED,
		Mode:         stringParam(query, "mode", "all"),
		Optimise:     stringParam(query, "optimise", "all"),
		Strategy:     stringParam(query, "strategy", "first"),
	}

	var err error
	if request.FromLat, err = optionalFloat(query, "from_lat"); err != nil {
		return request, err
	}
	if request.FromLon, err = optionalFloat(query, "from_lon"); err != nil {
		return request, err
	}
	if request.ToLat, err = optionalFloat(query, "to_lat"); err != nil {
		return request, err
	}
	if request.ToLon, err = optionalFloat(query, "to_lon"); err != nil {
		return request, err
	}

	if query.Has("time") {
		request.Time, err = time.Parse(time.RFC3339, query.Get("time"))
		if err != nil {
			return request, errors.New("time must be RFC3339, e.g. 2026-03-02T08:00:00+07:00")
		}
	}
	if query.Has("arrive_by") {
		if request.ArriveBy, err = strconv.ParseBool(query.Get("arrive_by")); err != nil {
			return request, errors.New("arrive_by must be a valid bool")
		}
	}
	if query.Has("wheelchair") {
		if request.Wheelchair, err = strconv.ParseBool(query.Get("wheelchair")); err != nil {
			return request, errors.New("wheelchair must be a valid bool")
		}
	}
	if query.Has("max_transfers") {
		if request.MaxTransfers, err = strconv.Atoi(query.Get("max_transfers")); err != nil {
			return request, errors.New("max_transfers must be a valid int")
		}
	}
	if query.Has("walk_speed") {
		if request.WalkSpeed, err = strconv.ParseFloat(query.Get("walk_speed"), 64); err != nil {
			return request, errors.New("walk_speed must be a valid float")
		}
	}
	return request, nil
}

func stringParam(query url.Values, name, def string) string {
	if v := query.Get(name); v != "" {
		return v
	}
	return def
}

func optionalFloat(query url.Values, name string) (*float64, error) {
	if !query.Has(name) {
		return nil, nil
	}
	v, err := strconv.ParseFloat(query.Get(name), 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a valid float", name)
	}
	return &v, nil
}

func place(stopID string, lat, lon *float64) usecases.Place {
	if stopID != "" || lat == nil || lon == nil {
		return usecases.Place{StopID: stopID}
	}
	return usecases.Place{Lat: *lat, Lon: *lon}
}
