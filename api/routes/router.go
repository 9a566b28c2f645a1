package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/digitalhandshake/dhs-backend/api/controllers"
	"github.com/digitalhandshake/dhs-backend/api/middleware"
	authsvc "github.com/digitalhandshake/dhs-backend/internal/auth"
	disputessvc "github.com/digitalhandshake/dhs-backend/internal/disputes"
	handshakessvc "github.com/digitalhandshake/dhs-backend/internal/handshakes"
	requestssvc "github.com/digitalhandshake/dhs-backend/internal/requests"
	tokensvc "github.com/digitalhandshake/dhs-backend/internal/token"
	userssvc "github.com/digitalhandshake/dhs-backend/internal/users"
	"github.com/digitalhandshake/dhs-backend/pkg/config"
	"github.com/digitalhandshake/dhs-backend/pkg/db"
	"github.com/digitalhandshake/dhs-backend/pkg/logger"
	"github.com/digitalhandshake/dhs-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	authService authsvc.Service,
	usersService userssvc.Service,
	requestsService requestssvc.Service,
	handshakesService handshakessvc.Service,
	disputesService disputessvc.Service,
	tokenService tokensvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginAccountLimit,
	)
	signupPolicy := middleware.NewAuthRateLimitPolicy(
		"signup",
		cfg.AuthRateLimit.SignupWindow,
		cfg.AuthRateLimit.SignupIPLimit,
		cfg.AuthRateLimit.SignupAccountLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbP, redisClient, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		login := controllers.Login(authService, logg)
		signup := controllers.Signup(usersService, logg)
		if redisClient != nil {
			r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", login)
			r.With(middleware.AuthRateLimit(signupPolicy, redisClient, logg)).Post("/signup", signup)
		} else {
			r.Post("/login", login)
			r.Post("/signup", signup)
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		if redisClient != nil {
			r.Use(middleware.RateLimit(redisClient, logg))
			r.Use(middleware.Idempotency(redisClient, logg))
		}

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", controllers.MyProfile(usersService, logg))
			r.Get("/{account}", controllers.GetProfile(usersService, logg))
		})

		r.Route("/requests", func(r chi.Router) {
			r.Get("/", controllers.ListOpenRequests(requestsService, logg))
			r.Post("/", controllers.PostRequest(requestsService, logg))
			r.Get("/mine", controllers.ListMyRequests(requestsService, logg))
			r.Get("/{requestId}", controllers.GetRequest(requestsService, logg))
			r.Post("/{requestId}/proposals", controllers.Propose(requestsService, logg))
			r.Post("/{requestId}/select", controllers.SelectBidder(requestsService, logg))
		})

		r.Route("/handshakes", func(r chi.Router) {
			r.Get("/", controllers.ListHandshakes(handshakesService, logg))
			r.Get("/{handshakeId}", controllers.GetHandshake(handshakesService, logg))
			r.Post("/{handshakeId}/negotiate", controllers.Negotiate(handshakesService, logg))
			r.Post("/{handshakeId}/accept-terms", controllers.AcceptTerms(handshakesService, logg))
			r.Post("/{handshakeId}/end-job", controllers.EndJob(handshakesService, logg))
			r.Post("/{handshakeId}/accept-job", controllers.AcceptJob(handshakesService, logg))
			r.Post("/{handshakeId}/expire", controllers.ExpireHandshake(handshakesService, logg))
			r.Post("/{handshakeId}/dispute", controllers.OpenDispute(disputesService, logg))
		})

		r.Route("/disputes", func(r chi.Router) {
			r.Get("/assigned", controllers.ListAssignedDisputes(disputesService, logg))
			r.Get("/{handshakeId}", controllers.GetDispute(disputesService, logg))
			r.Post("/{handshakeId}/motivation", controllers.SubmitMotivation(disputesService, logg))
			r.Post("/{handshakeId}/vote", controllers.CastVote(disputesService, logg))
		})

		r.Route("/token", func(r chi.Router) {
			r.Get("/balance", controllers.GetBalance(tokenService, cfg.Escrow, logg))
			r.Post("/transfers", controllers.Transfer(tokenService, cfg.Escrow, logg))
		})
	})

	return r
}
