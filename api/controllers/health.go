package controllers

import (
	"net/http"
	"time"

	"github.com/wambuinjohi/trainerconnect/api/responses"
	"github.com/wambuinjohi/trainerconnect/pkg/config"
	"github.com/wambuinjohi/trainerconnect/pkg/db"
	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
	pkgredis "github.com/wambuinjohi/trainerconnect/pkg/redis"
)

const readinessTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TrainerConnect-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP pkgredis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-TrainerConnect-Env", cfg.App.Env)

		ctx, cancel := withTimeout(r, readinessTimeout)
		defer cancel()

		checks := map[string]string{}

		if dbP != nil {
			if err := dbP.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unreachable"))
				return
			}
			checks["database"] = "ok"
		}

		if redisP != nil {
			if err := redisP.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unreachable"))
				return
			}
			checks["redis"] = "ok"
		}

		checks["status"] = "ready"
		responses.WriteSuccess(w, checks)
	}
}
