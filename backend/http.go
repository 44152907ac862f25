package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/goccy/go-json"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lh-manager/workbench/core/labware"
)

// Service routes.
const (
	RouteGetSamples       = "/GUI/GetSamples/"
	RouteGetSampleStatus  = "/GUI/GetSampleStatus/"
	RouteGetAllMethods    = "/GUI/GetAllMethods/"
	RouteUpdateSample     = "/GUI/UpdateSample/"
	RouteRunSample        = "/GUI/RunSample/"
	RouteRunMethod        = "/GUI/RunMethod/"
	RouteResubmitTasks    = "/GUI/ResubmitTasks/"
	RouteCancelTasks      = "/GUI/CancelTasks/"
	RouteExplodeSample    = "/GUI/ExplodeSample/"
	RouteArchiveAndRemove = "/GUI/ArchiveandRemoveSample/"
	RouteRemoveSample     = "/GUI/RemoveSample/"
	RouteDuplicateSample  = "/GUI/DuplicateSample/"
)

type ack = structpb.Struct

// HTTPClient is a Backend that calls the service over HTTP.
type HTTPClient struct {
	baseURL string

	samples *connect.Client[emptyRequest, samplesResponse]
	status  *connect.Client[emptyRequest, labware.SampleStatusMap]
	methods *connect.Client[emptyRequest, methodsResponse]

	update    *connect.Client[labware.Sample, ack]
	runSample *connect.Client[runSampleRequest, ack]
	runMethod *connect.Client[runMethodRequest, ack]
	resubmit  *connect.Client[tasksRequest, ack]
	cancel    *connect.Client[cancelRequest, ack]
	explode   *connect.Client[explodeRequest, ack]
	archive   *connect.Client[idRequest, ack]
	remove    *connect.Client[idRequest, ack]
	duplicate *connect.Client[duplicateRequest, ack]
}

var _ Backend = (*HTTPClient)(nil)

// NewHTTPClient builds a client for cfg.BaseURL. When httpClient is nil a
// client with cfg.Timeout is created. A nil logger disables call logging.
func NewHTTPClient(cfg Config, httpClient connect.HTTPClient, logger *slog.Logger) (*HTTPClient, error) {
	c := DefaultConfig()
	c.Merge(&cfg)

	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidURL, c.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s: scheme must be http or https", ErrInvalidURL, c.BaseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: c.Timeout.Std()}
	}

	opts := []connect.ClientOption{connect.WithCodec(jsonCodec{})}
	if logger != nil {
		opts = append(opts, connect.WithInterceptors(loggingInterceptor(logger)))
	}
	fetch := append([]connect.ClientOption{
		connect.WithHTTPGet(),
		connect.WithIdempotency(connect.IdempotencyNoSideEffects),
	}, opts...)

	root := strings.TrimSuffix(base.String(), "/")
	u := func(route string) string { return root + route }

	return &HTTPClient{
		baseURL:   root,
		samples:   connect.NewClient[emptyRequest, samplesResponse](httpClient, u(RouteGetSamples), fetch...),
		status:    connect.NewClient[emptyRequest, labware.SampleStatusMap](httpClient, u(RouteGetSampleStatus), fetch...),
		methods:   connect.NewClient[emptyRequest, methodsResponse](httpClient, u(RouteGetAllMethods), fetch...),
		update:    connect.NewClient[labware.Sample, ack](httpClient, u(RouteUpdateSample), opts...),
		runSample: connect.NewClient[runSampleRequest, ack](httpClient, u(RouteRunSample), opts...),
		runMethod: connect.NewClient[runMethodRequest, ack](httpClient, u(RouteRunMethod), opts...),
		resubmit:  connect.NewClient[tasksRequest, ack](httpClient, u(RouteResubmitTasks), opts...),
		cancel:    connect.NewClient[cancelRequest, ack](httpClient, u(RouteCancelTasks), opts...),
		explode:   connect.NewClient[explodeRequest, ack](httpClient, u(RouteExplodeSample), opts...),
		archive:   connect.NewClient[idRequest, ack](httpClient, u(RouteArchiveAndRemove), opts...),
		remove:    connect.NewClient[idRequest, ack](httpClient, u(RouteRemoveSample), opts...),
		duplicate: connect.NewClient[duplicateRequest, ack](httpClient, u(RouteDuplicateSample), opts...),
	}, nil
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) FetchSamples(ctx context.Context) (labware.SampleList, error) {
	resp, err := c.samples.CallUnary(ctx, connect.NewRequest(&emptyRequest{}))
	if err != nil {
		return labware.SampleList{}, classify("fetch samples", err)
	}
	list := resp.Msg.Samples
	if list.Samples == nil {
		list.Samples = []labware.Sample{}
	}
	return list, nil
}

func (c *HTTPClient) FetchSampleStatus(ctx context.Context) (labware.SampleStatusMap, error) {
	resp, err := c.status.CallUnary(ctx, connect.NewRequest(&emptyRequest{}))
	if err != nil {
		return nil, classify("fetch sample status", err)
	}
	if *resp.Msg == nil {
		return labware.SampleStatusMap{}, nil
	}
	return *resp.Msg, nil
}

func (c *HTTPClient) FetchMethodDefinitions(ctx context.Context) (map[string]labware.MethodDef, error) {
	resp, err := c.methods.CallUnary(ctx, connect.NewRequest(&emptyRequest{}))
	if err != nil {
		return nil, classify("fetch method definitions", err)
	}
	if resp.Msg.Methods == nil {
		return map[string]labware.MethodDef{}, nil
	}
	return resp.Msg.Methods, nil
}

func (c *HTTPClient) SubmitSample(ctx context.Context, sample labware.Sample) (*structpb.Struct, error) {
	return call(ctx, c.update, "update sample", &sample)
}

func (c *HTTPClient) RunSample(ctx context.Context, ref SampleRef, stages []labware.StageName) (*structpb.Struct, error) {
	if stages == nil {
		stages = labware.Stages()
	}
	return call(ctx, c.runSample, "run sample", &runSampleRequest{SampleRef: ref, Stage: stages})
}

func (c *HTTPClient) RunMethod(ctx context.Context, ref SampleRef, stage labware.StageName, methodID string) (*structpb.Struct, error) {
	return call(ctx, c.runMethod, "run method", &runMethodRequest{SampleRef: ref, Stage: stage, MethodID: methodID})
}

func (c *HTTPClient) ResubmitTasks(ctx context.Context, tasks []json.RawMessage) (*structpb.Struct, error) {
	return call(ctx, c.resubmit, "resubmit tasks", &tasksRequest{Tasks: tasks})
}

func (c *HTTPClient) CancelTasks(ctx context.Context, tasks []json.RawMessage, opts CancelOptions) (*structpb.Struct, error) {
	return call(ctx, c.cancel, "cancel tasks", &cancelRequest{
		Tasks:              tasks,
		IncludeActiveQueue: opts.IncludeActiveQueue,
		DropMaterial:       opts.DropMaterial,
	})
}

func (c *HTTPClient) ExplodeStage(ctx context.Context, sampleID string, stage labware.StageName) (*structpb.Struct, error) {
	return call(ctx, c.explode, "explode sample", &explodeRequest{ID: sampleID, Stage: stage})
}

func (c *HTTPClient) ArchiveAndRemoveSample(ctx context.Context, sampleID string) (*structpb.Struct, error) {
	return call(ctx, c.archive, "archive and remove sample", &idRequest{ID: sampleID})
}

func (c *HTTPClient) RemoveSample(ctx context.Context, sampleID string) (*structpb.Struct, error) {
	return call(ctx, c.remove, "remove sample", &idRequest{ID: sampleID})
}

func (c *HTTPClient) DuplicateSample(ctx context.Context, sampleID string, channel *int) (*structpb.Struct, error) {
	return call(ctx, c.duplicate, "duplicate sample", &duplicateRequest{ID: sampleID, Channel: channel})
}

func call[Req any](ctx context.Context, client *connect.Client[Req, ack], op string, req *Req) (*structpb.Struct, error) {
	resp, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, classify(op, err)
	}
	if err := CheckAck(resp.Msg); err != nil {
		return resp.Msg, fmt.Errorf("%s: %w", op, err)
	}
	return resp.Msg, nil
}

// classify maps a Connect error onto the package taxonomy. Codes that mean
// the request never reached a decision are unavailability; the rest are
// refusals.
func classify(op string, err error) error {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
	}

	switch connectErr.Code() {
	case connect.CodeUnavailable, connect.CodeDeadlineExceeded, connect.CodeCanceled, connect.CodeUnknown:
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
	default:
		return fmt.Errorf("%w: %s: %s", ErrRejected, op, connectErr.Message())
	}
}

func loggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			attrs := []slog.Attr{
				slog.String("procedure", req.Spec().Procedure),
				slog.String("method", req.HTTPMethod()),
				slog.Duration("elapsed", time.Since(start)),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelWarn, "backend call failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelDebug, "backend call", attrs...)
			}
			return resp, err
		}
	}
}
