package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/packquote-backend/api/responses"
	"github.com/angelmondragon/packquote-backend/api/validators"
	"github.com/angelmondragon/packquote-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
)

type rateTableService interface {
	Publish(ctx context.Context, rates pricing.Rates) error
	Versions(ctx context.Context) ([]string, error)
}

// RateTableVersions lists the versions a pricing request may name.
func RateTableVersions(svc rateTableService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rate table service unavailable"))
			return
		}
		versions, err := svc.Versions(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"versions": versions})
	}
}

// RateTableGet returns one rate table version.
func RateTableGet(resolver rateResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		version := strings.TrimSpace(chi.URLParam(r, "version"))
		if version == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "version is required"))
			return
		}
		rates, err := resolver.Resolve(ctx, version)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, rates)
	}
}

// RateTablePublish stores the body as the version named in the path.
func RateTablePublish(svc rateTableService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rate table service unavailable"))
			return
		}
		version := validators.SanitizeString(chi.URLParam(r, "version"), 64)
		if version == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "version is required"))
			return
		}

		var body pricing.Rates
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if body.Version != "" && body.Version != version {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "body version does not match path").
				WithDetails(map[string]string{"version": "must match the path"}))
			return
		}
		body.Version = version

		if err := svc.Publish(ctx, body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"version": version})
	}
}
