package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"

	"github.com/pkg/errors"

	"github.com/ironsheep/cosmx-align/internal/align"
	"github.com/ironsheep/cosmx-align/internal/pipeline"
	"github.com/ironsheep/cosmx-align/internal/transform"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "cosmx_align_slide").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Errorf("tool %s: %v", params.Name, err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "cosmx_list_slides":
		return s.handleListSlides()
	case "cosmx_align_slide":
		return s.handleAlignSlide(ctx, args)
	case "cosmx_classify_coverage":
		return s.handleClassifyCoverage(args)
	case "cosmx_get_transform":
		return s.handleGetTransform(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs decodes tool arguments; absent arguments leave v untouched.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	return json.Unmarshal(args, v)
}

type slideArgs struct {
	SlideID string `json:"slide_id"`
}

func (a slideArgs) validate() error {
	if a.SlideID == "" {
		return errors.New("slide_id is required")
	}
	return nil
}

// === Listing ===

// SlideEntry describes one slide in a cosmx_list_slides result.
type SlideEntry struct {
	SlideID      string `json:"slide_id"`
	HasHE        bool   `json:"has_he"`
	HasTransform bool   `json:"has_transform"`
}

// SlideList is the cosmx_list_slides result.
type SlideList struct {
	DataDir string       `json:"data_dir"`
	Count   int          `json:"count"`
	Slides  []SlideEntry `json:"slides"`
}

func (s *Server) handleListSlides() (interface{}, error) {
	layout := s.runner.Layout()
	ids, err := layout.ListSlides()
	if err != nil {
		return nil, err
	}

	list := &SlideList{DataDir: layout.Root, Count: len(ids), Slides: make([]SlideEntry, 0, len(ids))}
	for _, id := range ids {
		_, heErr := layout.FindPrimary(id)
		_, recErr := transform.Read(layout.TransformPath(id))
		list.Slides = append(list.Slides, SlideEntry{
			SlideID:      id,
			HasHE:        heErr == nil,
			HasTransform: recErr == nil,
		})
	}
	return list, nil
}

// === Alignment ===

type alignSlideArgs struct {
	slideArgs
	Mode   string `json:"mode"`
	Refine bool   `json:"refine"`
	Debug  bool   `json:"debug"`
}

// AlignResult is the cosmx_align_slide result.
type AlignResult struct {
	SlideID       string              `json:"slide_id"`
	Status        pipeline.Status     `json:"status"`
	Reason        string              `json:"reason,omitempty"`
	Score         float64             `json:"score,omitempty"`
	NeedsReview   bool                `json:"needs_review,omitempty"`
	TransformPath string              `json:"transform_path,omitempty"`
	Refinement    *align.RefineResult `json:"refinement,omitempty"`
	Record        *transform.Record   `json:"record,omitempty"`
}

func (s *Server) handleAlignSlide(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a alignSlideArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	mode, err := align.ParseMode(a.Mode)
	if err != nil {
		return nil, err
	}

	o, err := s.runner.RunSlide(ctx, a.SlideID, pipeline.RunOptions{Mode: mode, Refine: a.Refine, Debug: a.Debug})
	if err != nil {
		return nil, err
	}

	res := &AlignResult{SlideID: o.SlideID, Status: o.Status, Reason: o.Reason}
	if o.Status == pipeline.StatusProcessed {
		res.Score = o.Score
		res.NeedsReview = o.NeedsReview
		res.TransformPath = s.runner.Layout().TransformPath(a.SlideID)
		res.Refinement = o.Result.Refinement
		res.Record = o.Record
	}
	return res, nil
}

// === Coverage ===

type classifyArgs struct {
	slideArgs
	Mode string `json:"mode"`
}

// CoverageResult is the cosmx_classify_coverage result.
type CoverageResult struct {
	SlideID    string     `json:"slide_id"`
	SearchMode align.Mode `json:"search_mode"`
	align.CoverageVerdict
}

func (s *Server) handleClassifyCoverage(args json.RawMessage) (interface{}, error) {
	var a classifyArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	mode, err := align.ParseMode(a.Mode)
	if err != nil {
		return nil, err
	}

	v, err := s.runner.Classify(a.SlideID, mode)
	if err != nil {
		return nil, err
	}
	return &CoverageResult{SlideID: a.SlideID, SearchMode: v.SearchMode(), CoverageVerdict: v}, nil
}

// === Records ===

// TransformResult is the cosmx_get_transform result. Found is false when no
// record has been written yet, in which case Record is the identity.
type TransformResult struct {
	Found  bool              `json:"found"`
	Path   string            `json:"path"`
	Record *transform.Record `json:"record"`
}

func (s *Server) handleGetTransform(args json.RawMessage) (interface{}, error) {
	var a slideArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}

	path := s.runner.Layout().TransformPath(a.SlideID)
	rec, err := transform.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &TransformResult{Found: false, Path: path, Record: transform.Identity(a.SlideID)}, nil
	}
	if err != nil {
		return nil, err
	}
	return &TransformResult{Found: true, Path: path, Record: rec}, nil
}
