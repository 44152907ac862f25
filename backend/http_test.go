package backend_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/lh-manager/workbench/backend"
	"github.com/lh-manager/workbench/core/config"
	"github.com/lh-manager/workbench/core/labware"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
}

type fakeService struct {
	mu       sync.Mutex
	requests []recorded
	handlers map[string]func(w http.ResponseWriter, body map[string]any)
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()
	svc := &fakeService{handlers: map[string]func(http.ResponseWriter, map[string]any){}}
	server := httptest.NewServer(http.HandlerFunc(svc.serve))
	t.Cleanup(server.Close)
	return svc, server
}

func (f *fakeService) handle(route string, h func(w http.ResponseWriter, body map[string]any)) {
	f.handlers[route] = h
}

func (f *fakeService) serve(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var body map[string]any
	if len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, recorded{method: r.Method, path: r.URL.Path, body: body})
	h, ok := f.handlers[r.URL.Path]
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no route"})
		return
	}
	h(w, body)
}

func (f *fakeService) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(t *testing.T, server *httptest.Server) *backend.HTTPClient {
	t.Helper()
	client, err := backend.NewHTTPClient(backend.Config{
		BaseURL: server.URL + "/",
		Timeout: config.Duration(2 * time.Second),
	}, server.Client(), nil)
	if err != nil {
		t.Fatalf("NewHTTPClient() error = %v", err)
	}
	return client
}

func TestNewHTTPClient_InvalidURL(t *testing.T) {
	for _, raw := range []string{"ftp://host", "://bad"} {
		if _, err := backend.NewHTTPClient(backend.Config{BaseURL: raw}, nil, nil); !errors.Is(err, backend.ErrInvalidURL) {
			t.Errorf("NewHTTPClient(%q) error = %v, want ErrInvalidURL", raw, err)
		}
	}
}

func TestHTTPClient_FetchSamples(t *testing.T) {
	svc, server := newFakeService(t)
	svc.handle(backend.RouteGetSamples, func(w http.ResponseWriter, _ map[string]any) {
		writeJSON(w, http.StatusOK, map[string]any{
			"samples": map[string]any{
				"n_channels": 2,
				"samples": []any{
					map[string]any{
						"id":   "s1",
						"name": "first",
						"stages": map[string]any{
							"prep": map[string]any{
								"methods": []any{
									map[string]any{
										"id":          nil,
										"method_name": "Transfer",
										"Source":      map[string]any{"rack_id": "r1", "well_number": 3},
										"Volume":      1.5,
									},
								},
								"active": []any{},
							},
						},
					},
				},
			},
		})
	})

	list, err := newClient(t, server).FetchSamples(context.Background())
	if err != nil {
		t.Fatalf("FetchSamples() error = %v", err)
	}

	if got := svc.last().method; got != http.MethodGet {
		t.Errorf("fetch used %s, want GET", got)
	}
	if list.NChannels != 2 {
		t.Errorf("NChannels = %d, want 2", list.NChannels)
	}
	if len(list.Samples) != 1 {
		t.Fatalf("len(Samples) = %d, want 1", len(list.Samples))
	}

	s := list.Samples[0]
	if _, err := s.Stage(labware.StageInject); err != nil {
		t.Errorf("decoded sample missing inject stage: %v", err)
	}
	prep, _ := s.Stage(labware.StagePrep)
	if len(prep.Methods) != 1 {
		t.Fatalf("prep methods = %d, want 1", len(prep.Methods))
	}
	src, _ := prep.Methods[0].Field(labware.FieldSource)
	if loc, ok := src.AsWell(); !ok || loc != (labware.WellLocation{RackID: "r1", WellNumber: 3}) {
		t.Errorf("Source = %+v, want r1:3", src)
	}
}

func TestHTTPClient_FetchSampleStatusAndMethods(t *testing.T) {
	svc, server := newFakeService(t)
	svc.handle(backend.RouteGetSampleStatus, func(w http.ResponseWriter, _ map[string]any) {
		writeJSON(w, http.StatusOK, map[string]any{
			"s1": map[string]any{
				"status": "active",
				"stages": map[string]any{
					"prep": map[string]any{"status": "completed", "methods_complete": []bool{true, false}},
				},
			},
		})
	})
	svc.handle(backend.RouteGetAllMethods, func(w http.ResponseWriter, _ map[string]any) {
		writeJSON(w, http.StatusOK, map[string]any{
			"methods": map[string]any{
				"NCNR_Sleep": map[string]any{
					"display_name": "Sleep",
					"fields":       []string{"Time"},
					"schema": map[string]any{
						"properties": map[string]any{"Time": map[string]any{"type": "number"}},
					},
				},
			},
		})
	})

	client := newClient(t, server)

	status, err := client.FetchSampleStatus(context.Background())
	if err != nil {
		t.Fatalf("FetchSampleStatus() error = %v", err)
	}
	want := labware.SampleStatusMap{
		"s1": {
			Status: labware.StatusActive,
			Stages: map[labware.StageName]labware.StageStatus{
				labware.StagePrep: {Status: labware.StatusCompleted, MethodsComplete: []bool{true, false}},
			},
		},
	}
	if diff := cmp.Diff(want, status); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}

	defs, err := client.FetchMethodDefinitions(context.Background())
	if err != nil {
		t.Fatalf("FetchMethodDefinitions() error = %v", err)
	}
	def, ok := defs["NCNR_Sleep"]
	if !ok {
		t.Fatal("NCNR_Sleep definition missing")
	}
	if def.DisplayName != "Sleep" || def.Schema.Properties["Time"].Type != "number" {
		t.Errorf("definition = %+v", def)
	}
}

func TestHTTPClient_SubmitSample(t *testing.T) {
	svc, server := newFakeService(t)
	svc.handle(backend.RouteUpdateSample, func(w http.ResponseWriter, body map[string]any) {
		writeJSON(w, http.StatusOK, map[string]any{"sample updated": body["id"]})
	})

	sample := labware.NewSample("s1", "first")
	prep, _ := sample.Stage(labware.StagePrep)
	prep.Methods = append(prep.Methods, labware.NewMethod("NCNR_Sleep"))

	ack, err := newClient(t, server).SubmitSample(context.Background(), sample)
	if err != nil {
		t.Fatalf("SubmitSample() error = %v", err)
	}
	if got := ack.GetFields()["sample updated"].GetStringValue(); got != "s1" {
		t.Errorf("ack = %v, want sample updated s1", ack)
	}

	req := svc.last()
	if req.method != http.MethodPost || req.path != backend.RouteUpdateSample {
		t.Errorf("request = %s %s", req.method, req.path)
	}
	stages, _ := req.body["stages"].(map[string]any)
	prepBody, _ := stages["prep"].(map[string]any)
	methods, _ := prepBody["methods"].([]any)
	if len(methods) != 1 {
		t.Fatalf("submitted prep methods = %v", prepBody["methods"])
	}
	method := methods[0].(map[string]any)
	if method["method_name"] != "NCNR_Sleep" || method["id"] != nil {
		t.Errorf("submitted method = %v", method)
	}
}

func TestHTTPClient_Actions(t *testing.T) {
	uuid := "nice-1"
	slot := 4
	ref := backend.SampleRef{Name: "first", ID: "s1", UUID: &uuid, SlotID: &slot}
	channel := 1

	tests := []struct {
		name  string
		route string
		call  func(c *backend.HTTPClient) error
		want  map[string]any
	}{
		{
			name:  "run sample",
			route: backend.RouteRunSample,
			call: func(c *backend.HTTPClient) error {
				_, err := c.RunSample(context.Background(), ref, []labware.StageName{labware.StagePrep})
				return err
			},
			want: map[string]any{"name": "first", "id": "s1", "uuid": "nice-1", "slotID": float64(4), "stage": []any{"prep"}},
		},
		{
			name:  "run method",
			route: backend.RouteRunMethod,
			call: func(c *backend.HTTPClient) error {
				_, err := c.RunMethod(context.Background(), ref, labware.StageInject, "m1")
				return err
			},
			want: map[string]any{"name": "first", "id": "s1", "uuid": "nice-1", "slotID": float64(4), "stage": "inject", "method_id": "m1"},
		},
		{
			name:  "resubmit tasks",
			route: backend.RouteResubmitTasks,
			call: func(c *backend.HTTPClient) error {
				_, err := c.ResubmitTasks(context.Background(), []json.RawMessage{json.RawMessage(`{"id":"t1"}`)})
				return err
			},
			want: map[string]any{"tasks": []any{map[string]any{"id": "t1"}}},
		},
		{
			name:  "cancel tasks",
			route: backend.RouteCancelTasks,
			call: func(c *backend.HTTPClient) error {
				_, err := c.CancelTasks(context.Background(), []json.RawMessage{json.RawMessage(`{"id":"t1"}`)}, backend.CancelOptions{DropMaterial: true})
				return err
			},
			want: map[string]any{"tasks": []any{map[string]any{"id": "t1"}}, "include_active_queue": false, "drop_material": true},
		},
		{
			name:  "explode",
			route: backend.RouteExplodeSample,
			call: func(c *backend.HTTPClient) error {
				_, err := c.ExplodeStage(context.Background(), "s1", labware.StagePrep)
				return err
			},
			want: map[string]any{"id": "s1", "stage": "prep"},
		},
		{
			name:  "archive",
			route: backend.RouteArchiveAndRemove,
			call: func(c *backend.HTTPClient) error {
				_, err := c.ArchiveAndRemoveSample(context.Background(), "s1")
				return err
			},
			want: map[string]any{"id": "s1"},
		},
		{
			name:  "remove",
			route: backend.RouteRemoveSample,
			call: func(c *backend.HTTPClient) error {
				_, err := c.RemoveSample(context.Background(), "s1")
				return err
			},
			want: map[string]any{"id": "s1"},
		},
		{
			name:  "duplicate",
			route: backend.RouteDuplicateSample,
			call: func(c *backend.HTTPClient) error {
				_, err := c.DuplicateSample(context.Background(), "s1", &channel)
				return err
			},
			want: map[string]any{"id": "s1", "channel": float64(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, server := newFakeService(t)
			svc.handle(tt.route, func(w http.ResponseWriter, _ map[string]any) {
				writeJSON(w, http.StatusOK, map[string]any{"result": "success", "message": "success"})
			})

			if err := tt.call(newClient(t, server)); err != nil {
				t.Fatalf("call error = %v", err)
			}

			req := svc.last()
			if req.path != tt.route {
				t.Errorf("path = %s, want %s", req.path, tt.route)
			}
			if diff := cmp.Diff(tt.want, req.body); diff != "" {
				t.Errorf("payload mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHTTPClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    map[string]any
		wantErr error
	}{
		{
			name:    "error key in ack",
			status:  http.StatusOK,
			body:    map[string]any{"error": "no id in sample, can't update or add"},
			wantErr: backend.ErrRejected,
		},
		{
			name:    "bad request",
			status:  http.StatusBadRequest,
			body:    map[string]any{"result": "error", "message": "sample already active"},
			wantErr: backend.ErrRejected,
		},
		{
			name:    "service unavailable",
			status:  http.StatusServiceUnavailable,
			body:    map[string]any{"message": "down"},
			wantErr: backend.ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, server := newFakeService(t)
			svc.handle(backend.RouteUpdateSample, func(w http.ResponseWriter, _ map[string]any) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := newClient(t, server).SubmitSample(context.Background(), labware.NewSample("s1", "x"))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SubmitSample() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHTTPClient_ServerDown(t *testing.T) {
	_, server := newFakeService(t)
	client := newClient(t, server)
	server.Close()

	if _, err := client.FetchSamples(context.Background()); !errors.Is(err, backend.ErrUnavailable) {
		t.Errorf("FetchSamples() error = %v, want ErrUnavailable", err)
	}
}

func TestCheckAck(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]any
		wantErr bool
	}{
		{name: "updated", fields: map[string]any{"sample updated": "s1"}},
		{name: "success", fields: map[string]any{"result": "success", "message": "success"}},
		{name: "error key", fields: map[string]any{"error": "nope"}, wantErr: true},
		{name: "error result", fields: map[string]any{"result": "error", "message": "nope"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := backend.CheckAck(backend.NewAck(tt.fields))
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckAck() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, backend.ErrRejected) {
				t.Errorf("CheckAck() error = %v, want ErrRejected", err)
			}
		})
	}
}
