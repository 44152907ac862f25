package backend

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lh-manager/workbench/core/labware"
)

// Backend is the execution service as seen by the workbench. Every call is a
// single request/response round trip.
type Backend interface {
	FetchSamples(ctx context.Context) (labware.SampleList, error)
	FetchSampleStatus(ctx context.Context) (labware.SampleStatusMap, error)
	FetchMethodDefinitions(ctx context.Context) (map[string]labware.MethodDef, error)

	// SubmitSample sends the full sample document. The service replaces its
	// copy wholesale, or adds the sample when the id is new.
	SubmitSample(ctx context.Context, sample labware.Sample) (*structpb.Struct, error)

	RunSample(ctx context.Context, ref SampleRef, stages []labware.StageName) (*structpb.Struct, error)
	RunMethod(ctx context.Context, ref SampleRef, stage labware.StageName, methodID string) (*structpb.Struct, error)
	ResubmitTasks(ctx context.Context, tasks []json.RawMessage) (*structpb.Struct, error)
	CancelTasks(ctx context.Context, tasks []json.RawMessage, opts CancelOptions) (*structpb.Struct, error)
	ExplodeStage(ctx context.Context, sampleID string, stage labware.StageName) (*structpb.Struct, error)
	ArchiveAndRemoveSample(ctx context.Context, sampleID string) (*structpb.Struct, error)
	RemoveSample(ctx context.Context, sampleID string) (*structpb.Struct, error)
	DuplicateSample(ctx context.Context, sampleID string, channel *int) (*structpb.Struct, error)
}

// SampleRef is the minimal identifying tuple sent with sample actions.
type SampleRef struct {
	Name   string  `json:"name"`
	ID     string  `json:"id"`
	UUID   *string `json:"uuid"`
	SlotID *int    `json:"slotID"`
}

// RefOf builds the identifying tuple of a sample.
func RefOf(sample labware.Sample) SampleRef {
	return SampleRef{
		Name:   sample.Name,
		ID:     sample.ID,
		UUID:   sample.NICEUUID,
		SlotID: sample.NICESlotID,
	}
}

type CancelOptions struct {
	IncludeActiveQueue bool
	DropMaterial       bool
}

type runSampleRequest struct {
	SampleRef
	Stage []labware.StageName `json:"stage"`
}

type runMethodRequest struct {
	SampleRef
	Stage    labware.StageName `json:"stage"`
	MethodID string            `json:"method_id"`
}

type tasksRequest struct {
	Tasks []json.RawMessage `json:"tasks"`
}

type cancelRequest struct {
	Tasks              []json.RawMessage `json:"tasks"`
	IncludeActiveQueue bool              `json:"include_active_queue"`
	DropMaterial       bool              `json:"drop_material"`
}

type idRequest struct {
	ID string `json:"id"`
}

type explodeRequest struct {
	ID    string            `json:"id"`
	Stage labware.StageName `json:"stage"`
}

type duplicateRequest struct {
	ID      string `json:"id"`
	Channel *int   `json:"channel,omitempty"`
}

type emptyRequest struct{}

type samplesResponse struct {
	Samples labware.SampleList `json:"samples"`
}

type methodsResponse struct {
	Methods map[string]labware.MethodDef `json:"methods"`
}

// CheckAck turns an acknowledgement that reports a refusal into ErrRejected.
// The service signals refusal either with an "error" key or with
// "result": "error" and a "message".
func CheckAck(ack *structpb.Struct) error {
	if ack == nil {
		return nil
	}
	fields := ack.GetFields()

	if v, ok := fields["error"]; ok {
		return fmt.Errorf("%w: %s", ErrRejected, ackText(v))
	}
	if v, ok := fields["result"]; ok && v.GetStringValue() == "error" {
		return fmt.Errorf("%w: %s", ErrRejected, ackText(fields["message"]))
	}
	return nil
}

func ackText(v *structpb.Value) string {
	if v == nil {
		return "no message"
	}
	if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
		return s.StringValue
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return v.String()
	}
	return string(data)
}

// NewAck builds an acknowledgement from plain values.
func NewAck(fields map[string]any) *structpb.Struct {
	ack, err := structpb.NewStruct(fields)
	if err != nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{}}
	}
	return ack
}
