// Package server exposes the segmentation engine over an HTTP admin API.
//
// The reach and export endpoints return the engine's uniform envelope with
// HTTP 200 even when the envelope carries an error string: the builder UI
// treats a failed preview as an empty-looking segment with a banner, not as
// a failed request. Segment CRUD and recipient resolution use conventional
// status codes.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/coursekit/reach/internal/segment"
	"github.com/coursekit/reach/internal/types"
)

// Config for the HTTP API handler.
type Config struct {
	Service   *segment.Service
	Store     *segment.Store
	Previewer *segment.Previewer
	BasePath  string
	Logger    *slog.Logger
}

// New returns an HTTP handler exposing the reach API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Reach API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(api)
	registerReach(group, cfg)
	registerSegments(group, cfg)
	registerTags(group, cfg)

	return router, nil
}

// handleError maps engine sentinels to HTTP statuses for the endpoints that
// use conventional error responses.
func handleError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrSegmentNotFound):
		return huma.Error404NotFound("segment not found")
	case errors.Is(err, types.ErrTagNotFound):
		return huma.Error404NotFound("tag not found")
	case errors.Is(err, types.ErrMalformedRule):
		return huma.Error400BadRequest("segment rules are malformed", err)
	case errors.Is(err, types.ErrRuleTooComplex):
		return huma.Error400BadRequest("segment rules are too complex", err)
	case errors.Is(err, types.ErrStorageTimeout):
		return huma.Error503ServiceUnavailable("audience store timed out")
	case errors.Is(err, types.ErrStorageUnavailable):
		return huma.Error503ServiceUnavailable("audience store unavailable")
	}
	return huma.Error500InternalServerError("internal error", err)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerReach(api huma.API, cfg Config) {
	type reachRequest struct {
		Body struct {
			Rules      types.SegmentRules `json:"rules"`
			SampleSize int                `json:"sampleSize,omitempty" minimum:"0"`
			Offset     int                `json:"offset,omitempty" minimum:"0"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "reach",
		Method:      http.MethodPost,
		Path:        "/reach",
		Summary:     "Count and sample the audience matching a rule tree",
	}, func(ctx context.Context, input *reachRequest) (*struct {
		Body segment.ReachResult
	}, error) {
		result := cfg.Service.Reach(ctx, input.Body.Rules, input.Body.SampleSize, input.Body.Offset)
		return &struct {
			Body segment.ReachResult
		}{Body: result}, nil
	})

	type exportRequest struct {
		Body struct {
			Rules types.SegmentRules `json:"rules"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "export-audience",
		Method:      http.MethodPost,
		Path:        "/export",
		Summary:     "Export all matching users up to the configured cap",
	}, func(ctx context.Context, input *exportRequest) (*struct {
		Body segment.ExportResult
	}, error) {
		result := cfg.Service.ExportAll(ctx, input.Body.Rules)
		return &struct {
			Body segment.ExportResult
		}{Body: result}, nil
	})

	type resolveResponse struct {
		Body struct {
			UserIDs []types.UserID `json:"userIds"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "resolve-recipients",
		Method:      http.MethodPost,
		Path:        "/resolve",
		Summary:     "Resolve the full recipient id list for a rule tree",
		Errors:      []int{http.StatusBadRequest, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *exportRequest) (*resolveResponse, error) {
		ids, err := cfg.Service.ResolveRecipients(ctx, input.Body.Rules)
		if err != nil {
			return nil, handleError(err)
		}
		if ids == nil {
			ids = []types.UserID{}
		}
		resp := &resolveResponse{}
		resp.Body.UserIDs = ids
		return resp, nil
	})
}

func registerSegments(api huma.API, cfg Config) {
	type segmentBody struct {
		Name  string             `json:"name" minLength:"1" maxLength:"200"`
		Rules types.SegmentRules `json:"rules"`
	}
	type segmentResponse struct {
		Body types.Segment
	}

	huma.Register(api, huma.Operation{
		OperationID:   "create-segment",
		Method:        http.MethodPost,
		Path:          "/segments",
		Summary:       "Save a named segment",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		Body segmentBody
	}) (*segmentResponse, error) {
		seg, err := cfg.Store.Create(ctx, input.Body.Name, input.Body.Rules)
		if err != nil {
			return nil, handleError(err)
		}
		return &segmentResponse{Body: seg}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-segments",
		Method:      http.MethodGet,
		Path:        "/segments",
		Summary:     "List saved segments",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Segments []types.Segment `json:"segments"`
		}
	}, error) {
		segments, err := cfg.Store.List(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		resp := &struct {
			Body struct {
				Segments []types.Segment `json:"segments"`
			}
		}{}
		resp.Body.Segments = segments
		return resp, nil
	})

	type SegmentPath struct {
		SegmentID string `path:"segment_id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "get-segment",
		Method:      http.MethodGet,
		Path:        "/segments/{segment_id}",
		Summary:     "Fetch a saved segment",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *SegmentPath) (*segmentResponse, error) {
		id, err := types.ParseSegmentID(input.SegmentID)
		if err != nil {
			return nil, huma.Error404NotFound("segment not found")
		}
		seg, err := cfg.Store.Get(ctx, id)
		if err != nil {
			return nil, handleError(err)
		}
		return &segmentResponse{Body: seg}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-segment",
		Method:      http.MethodPut,
		Path:        "/segments/{segment_id}",
		Summary:     "Update a saved segment",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SegmentPath
		Body segmentBody
	}) (*segmentResponse, error) {
		id, err := types.ParseSegmentID(input.SegmentID)
		if err != nil {
			return nil, huma.Error404NotFound("segment not found")
		}
		seg, err := cfg.Store.Update(ctx, id, input.Body.Name, input.Body.Rules)
		if err != nil {
			return nil, handleError(err)
		}
		cfg.Previewer.Invalidate(id)
		return &segmentResponse{Body: seg}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-segment",
		Method:        http.MethodDelete,
		Path:          "/segments/{segment_id}",
		Summary:       "Delete a saved segment",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *SegmentPath) (*struct{}, error) {
		id, err := types.ParseSegmentID(input.SegmentID)
		if err != nil {
			return nil, huma.Error404NotFound("segment not found")
		}
		if err := cfg.Store.Delete(ctx, id); err != nil {
			return nil, handleError(err)
		}
		cfg.Previewer.Invalidate(id)
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "preview-segment",
		Method:      http.MethodGet,
		Path:        "/segments/{segment_id}/preview",
		Summary:     "Cached reach preview of a saved segment",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SegmentPath
		Limit  int `query:"limit" minimum:"0" default:"10"`
		Offset int `query:"offset" minimum:"0" default:"0"`
	}) (*struct {
		Body segment.ReachResult
	}, error) {
		id, err := types.ParseSegmentID(input.SegmentID)
		if err != nil {
			return nil, huma.Error404NotFound("segment not found")
		}
		result, err := cfg.Previewer.Preview(ctx, id, input.Limit, input.Offset)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body segment.ReachResult
		}{Body: result}, nil
	})
}

func registerTags(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tags",
		Method:      http.MethodGet,
		Path:        "/tags",
		Summary:     "List tags for the segment builder",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Tags []types.Tag `json:"tags"`
		}
	}, error) {
		tags, err := cfg.Store.Tags(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		resp := &struct {
			Body struct {
				Tags []types.Tag `json:"tags"`
			}
		}{}
		resp.Body.Tags = tags
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tag",
		Method:      http.MethodGet,
		Path:        "/tags/{tag_id}",
		Summary:     "Fetch a single tag",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TagID string `path:"tag_id"`
	}) (*struct {
		Body types.Tag
	}, error) {
		tag, err := cfg.Store.Tag(ctx, types.TagID(input.TagID))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body types.Tag
		}{Body: tag}, nil
	})
}
