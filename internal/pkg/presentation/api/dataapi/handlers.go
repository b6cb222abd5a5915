package dataapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/diwise/bubble-client/internal/pkg/application/sandbox"
	"github.com/diwise/bubble-client/internal/pkg/presentation/api/dataapi/auth"
	apierrors "github.com/diwise/bubble-client/internal/pkg/presentation/api/dataapi/errors"
	"github.com/diwise/bubble-client/pkg/bubble"
	"github.com/diwise/bubble-client/pkg/bubble/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	TraceAttributeObjectType string = "object-type"
	TraceAttributeObjectID   string = "object-id"
)

var tracer = otel.Tracer("bubble-sandbox/dataapi")

func RegisterHandlers(ctx context.Context, r chi.Router, policies io.Reader, secret string, store sandbox.Store) error {

	authenticator, err := auth.NewAuthenticator(ctx, policies, secret)
	if err != nil {
		return fmt.Errorf("failed to create api authenticator: %w", err)
	}

	r.Route(bubble.ObjectsPath, func(r chi.Router) {
		r.Use(Logger(logging.GetFromContext(ctx)))

		r.Route("/{type}", func(r chi.Router) {
			r.Get("/", NewQueryObjectsHandler(store, authenticator))
			r.Post("/", NewCreateObjectHandler(store, authenticator))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", NewRetrieveObjectHandler(store, authenticator))
				r.Put("/", NewReplaceObjectHandler(store, authenticator))
				r.Patch("/", NewModifyObjectHandler(store, authenticator))
				r.Delete("/", NewDeleteObjectHandler(store, authenticator))
			})
		})
	})

	return nil
}

func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			_, ctx, _ = o11y.AddTraceIDToLoggerAndStoreInContext(
				trace.SpanFromContext(ctx),
				logger,
				ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func NewQueryObjectsHandler(store sandbox.Store, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		objectType := chi.URLParam(r, "type")

		ctx, span := tracer.Start(r.Context(), "query-objects",
			trace.WithAttributes(attribute.String(TraceAttributeObjectType, objectType)),
		)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		if err = authenticator.CheckAccess(ctx, r, objectType); err != nil {
			apierrors.ReportUnauthorizedError(w, err.Error())
			return
		}

		q, err := queryFromRequest(r)
		if err != nil {
			apierrors.ReportError(w, err)
			return
		}

		page, err := store.Query(ctx, objectType, q)
		if err != nil {
			apierrors.ReportError(w, err)
			return
		}

		writeResponse(w, http.StatusOK, map[string]any{"response": page})
	})
}

func NewRetrieveObjectHandler(store sandbox.Store, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		objectType, objectID := chi.URLParam(r, "type"), chi.URLParam(r, "id")

		ctx, span := startObjectSpan(r.Context(), "retrieve-object", objectType, objectID)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		if err = authenticator.CheckAccess(ctx, r, objectType); err != nil {
			apierrors.ReportUnauthorizedError(w, err.Error())
			return
		}

		obj, err := store.Find(ctx, objectType, objectID)
		if err != nil {
			apierrors.ReportError(w, err)
			return
		}

		writeResponse(w, http.StatusOK, map[string]any{"response": obj})
	})
}

func NewCreateObjectHandler(store sandbox.Store, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		objectType := chi.URLParam(r, "type")

		ctx, span := tracer.Start(r.Context(), "create-object",
			trace.WithAttributes(attribute.String(TraceAttributeObjectType, objectType)),
		)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		if err = authenticator.CheckAccess(ctx, r, objectType); err != nil {
			apierrors.ReportUnauthorizedError(w, err.Error())
			return
		}

		fields, err := decodeFields(r.Body)
		if err != nil {
			apierrors.ReportError(w, err)
			return
		}

		id, err := store.Create(ctx, objectType, fields)
		if err != nil {
			apierrors.ReportError(w, err)
			return
		}

		writeResponse(w, http.StatusCreated, bubble.CreateResult{Status: "success", ID: id})
	})
}

func NewReplaceObjectHandler(store sandbox.Store, authenticator auth.Enticator) http.HandlerFunc {
	return newUpdateHandler("replace-object", store.Replace, authenticator)
}

func NewModifyObjectHandler(store sandbox.Store, authenticator auth.Enticator) http.HandlerFunc {
	return newUpdateHandler("modify-object", store.Modify, authenticator)
}

type updateFunc func(ctx context.Context, typeName, id string, fields map[string]any) error

func newUpdateHandler(operation string, update updateFunc, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		objectType, objectID := chi.URLParam(r, "type"), chi.URLParam(r, "id")

		ctx, span := startObjectSpan(r.Context(), operation, objectType, objectID)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		if err = authenticator.CheckAccess(ctx, r, objectType); err != nil {
			apierrors.ReportUnauthorizedError(w, err.Error())
			return
		}

		fields, err := decodeFields(r.Body)
		if err != nil {
			apierrors.ReportError(w, err)
			return
		}

		if err = update(ctx, objectType, objectID, fields); err != nil {
			apierrors.ReportError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func NewDeleteObjectHandler(store sandbox.Store, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		objectType, objectID := chi.URLParam(r, "type"), chi.URLParam(r, "id")

		ctx, span := startObjectSpan(r.Context(), "delete-object", objectType, objectID)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		if err = authenticator.CheckAccess(ctx, r, objectType); err != nil {
			apierrors.ReportUnauthorizedError(w, err.Error())
			return
		}

		if err = store.Delete(ctx, objectType, objectID); err != nil {
			apierrors.ReportError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func startObjectSpan(ctx context.Context, operation, objectType, objectID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, operation,
		trace.WithAttributes(attribute.String(TraceAttributeObjectType, objectType)),
		trace.WithAttributes(attribute.String(TraceAttributeObjectID, objectID)),
	)
}

func queryFromRequest(r *http.Request) (sandbox.Query, error) {
	params := r.URL.Query()

	q := sandbox.Query{
		SortField:  params.Get("sort_field"),
		Descending: params.Get("descending") == "true",
	}

	var err error

	for name, target := range map[string]*int{"cursor": &q.Cursor, "limit": &q.Limit} {
		value := params.Get(name)
		if value == "" {
			continue
		}

		*target, err = strconv.Atoi(value)
		if err != nil || *target < 0 {
			return q, errors.NewBadRequestError(fmt.Sprintf("invalid %s parameter %q", name, value))
		}
	}

	q.Constraints, err = sandbox.ParseConstraints(params.Get("constraints"))

	return q, err
}

func decodeFields(body io.Reader) (map[string]any, error) {
	fields := map[string]any{}

	d := json.NewDecoder(body)
	d.UseNumber()

	if err := d.Decode(&fields); err != nil && err != io.EOF {
		return nil, errors.NewBadRequestError(fmt.Sprintf("unable to decode request payload: %s", err.Error()))
	}

	return fields, nil
}

func writeResponse(w http.ResponseWriter, code int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		apierrors.ReportInternalError(w, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}
