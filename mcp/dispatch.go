// Package mcp sketches the caller-side boundary to the external tool-
// dispatch protocol layer: interfaces only, no JSON-RPC/stdio marshaling.
// That wire-level work is out of scope (spec.md §1's Non-goals); this
// package exists so the IPC client has a documented, compilable caller and
// cmd/bridge has something concrete to wire, matching
// original_source/server/src/mcp/service.rs's thin-adapter shape.
/*
 * Copyright (c) 2024-2026, the unity-mcp-bridge authors.
 */
package mcp

import (
	"context"
	"time"

	"github.com/tsukushibito/unity-mcp-bridge/ipc"
)

// ToolCall is one inbound tool invocation from the (out-of-scope) external
// protocol layer.
type ToolCall struct {
	Name    string
	Args    map[string]any
	Timeout time.Duration
}

// ToolResult is the outcome handed back to the external layer.
type ToolResult struct {
	Ok      bool
	Message string
	Data    map[string]any
}

// Dispatcher routes a ToolCall to its handler and returns a ToolResult.
type Dispatcher interface {
	Dispatch(ctx context.Context, call ToolCall) (ToolResult, error)
}

// BridgeDispatcher adapts IPC typed responses into ToolResult, so tool
// names map onto the ipc.Client's operation wrappers without the caller
// needing to know about Envelopes.
type BridgeDispatcher struct {
	Client *ipc.Client
}

func NewBridgeDispatcher(client *ipc.Client) *BridgeDispatcher {
	return &BridgeDispatcher{Client: client}
}

func (d *BridgeDispatcher) Dispatch(ctx context.Context, call ToolCall) (ToolResult, error) {
	if !d.Client.Status().Connected {
		return ToolResult{Ok: false, Message: "peer not running; see status accessor"}, nil
	}

	switch call.Name {
	case "health":
		resp, err := d.Client.Health(ctx, call.Timeout)
		if err != nil {
			return ToolResult{}, err
		}
		return ToolResult{Ok: resp.Ready, Message: resp.Status, Data: map[string]any{"version": resp.Version}}, nil

	case "assets_import":
		path, _ := call.Args["path"].(string)
		flags, _ := call.Args["flags"].(string)
		res, err := d.Client.AssetsImport(ctx, path, flags, call.Timeout)
		if err != nil {
			return ToolResult{}, err
		}
		return ToolResult{Ok: true, Data: map[string]any{"guid": res.Guid, "path": res.Path}}, nil

	case "assets_move":
		src, _ := call.Args["src_path"].(string)
		dst, _ := call.Args["dst_path"].(string)
		res, err := d.Client.AssetsMove(ctx, src, dst, call.Timeout)
		if err != nil {
			return ToolResult{}, err
		}
		return ToolResult{Ok: true, Data: map[string]any{"guid": res.Guid, "path": res.Path}}, nil

	case "scenes_open":
		path, _ := call.Args["path"].(string)
		additive, _ := call.Args["additive"].(bool)
		if err := d.Client.ScenesOpen(ctx, path, additive, call.Timeout); err != nil {
			return ToolResult{}, err
		}
		return ToolResult{Ok: true}, nil

	case "component_add":
		goPath, _ := call.Args["game_object_path"].(string)
		compType, _ := call.Args["component_type"].(string)
		res, err := d.Client.ComponentAdd(ctx, goPath, compType, call.Timeout)
		if err != nil {
			return ToolResult{}, err
		}
		return ToolResult{Ok: true, Data: map[string]any{"instance_id": res.InstanceID}}, nil

	case "build_player":
		target, _ := call.Args["target"].(string)
		outputPath, _ := call.Args["output_path"].(string)
		res, err := d.Client.BuildPlayer(ctx, target, outputPath, call.Timeout)
		if err != nil {
			return ToolResult{}, err
		}
		return ToolResult{Ok: res.Succeeded, Data: map[string]any{"output_path": res.OutputPath}}, nil

	default:
		return ToolResult{Ok: false, Message: "unknown tool: " + call.Name}, nil
	}
}
