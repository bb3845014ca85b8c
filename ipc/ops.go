package ipc

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// HealthResponse mirrors the peer's HealthResponse arm.
type HealthResponse struct {
	Ready   bool
	Version string
	Status  string
}

// Health issues a Health request and decodes the typed response.
func (c *Client) Health(ctx context.Context, timeout time.Duration) (HealthResponse, error) {
	env, err := c.Request(ctx, "health", nil, timeout)
	if err != nil {
		return HealthResponse{}, err
	}
	if !env.StatusOK() {
		return HealthResponse{}, statusErr(env)
	}
	args, err := DecodeArgs(env.Payload)
	if err != nil {
		return HealthResponse{}, newErr(KindCodec, err)
	}
	return HealthResponse{
		Ready:   boolArg(args, "ready"),
		Version: stringArg(args, "version"),
		Status:  stringArg(args, "status"),
	}, nil
}

// AssetsImportResult mirrors the peer's AssetsImport response arm.
type AssetsImportResult struct {
	Guid string
	Path string
}

// AssetsImport imports the asset at path, optionally with flags, and
// returns its resolved GUID/path. This op is cacheable upstream in the
// streaming processor since (path, flags) deterministically fingerprints
// the outcome.
func (c *Client) AssetsImport(ctx context.Context, path string, flags string, timeout time.Duration) (AssetsImportResult, error) {
	payload, err := EncodeArgs(map[string]any{"path": path, "flags": flags})
	if err != nil {
		return AssetsImportResult{}, newErr(KindCodec, err)
	}
	env, err := c.Request(ctx, "assets_import", payload, timeout)
	if err != nil {
		return AssetsImportResult{}, err
	}
	if !env.StatusOK() {
		return AssetsImportResult{}, statusErr(env)
	}
	args, err := DecodeArgs(env.Payload)
	if err != nil {
		return AssetsImportResult{}, newErr(KindCodec, err)
	}
	return AssetsImportResult{Guid: stringArg(args, "guid"), Path: stringArg(args, "path")}, nil
}

// AssetsMoveResult mirrors the peer's AssetsMove response arm.
type AssetsMoveResult struct {
	Guid string
	Path string
}

// AssetsMove moves/renames the asset at srcPath to dstPath. Per spec.md
// §4.8's path-hygiene rule, an identical src/dst is rejected locally rather
// than round-tripped to the peer.
func (c *Client) AssetsMove(ctx context.Context, srcPath, dstPath string, timeout time.Duration) (AssetsMoveResult, error) {
	if strings.TrimSpace(srcPath) == strings.TrimSpace(dstPath) {
		return AssetsMoveResult{}, newErr(KindValidation, errors.New("move source and destination must differ"))
	}
	payload, err := EncodeArgs(map[string]any{"src_path": srcPath, "dst_path": dstPath})
	if err != nil {
		return AssetsMoveResult{}, newErr(KindCodec, err)
	}
	env, err := c.Request(ctx, "assets_move", payload, timeout)
	if err != nil {
		return AssetsMoveResult{}, err
	}
	if !env.StatusOK() {
		return AssetsMoveResult{}, statusErr(env)
	}
	args, err := DecodeArgs(env.Payload)
	if err != nil {
		return AssetsMoveResult{}, newErr(KindCodec, err)
	}
	return AssetsMoveResult{Guid: stringArg(args, "guid"), Path: stringArg(args, "path")}, nil
}

// ScenesOpen opens a scene by path.
func (c *Client) ScenesOpen(ctx context.Context, path string, additive bool, timeout time.Duration) error {
	payload, err := EncodeArgs(map[string]any{"path": path, "additive": additive})
	if err != nil {
		return newErr(KindCodec, err)
	}
	env, err := c.Request(ctx, "scenes_open", payload, timeout)
	if err != nil {
		return err
	}
	if !env.StatusOK() {
		return statusErr(env)
	}
	return nil
}

// ComponentAddResult mirrors the peer's ComponentAdd response arm.
type ComponentAddResult struct {
	InstanceID string
}

// ComponentAdd adds a component of componentType to the GameObject at
// gameObjectPath.
func (c *Client) ComponentAdd(ctx context.Context, gameObjectPath, componentType string, timeout time.Duration) (ComponentAddResult, error) {
	payload, err := EncodeArgs(map[string]any{"game_object_path": gameObjectPath, "component_type": componentType})
	if err != nil {
		return ComponentAddResult{}, newErr(KindCodec, err)
	}
	env, err := c.Request(ctx, "component_add", payload, timeout)
	if err != nil {
		return ComponentAddResult{}, err
	}
	if !env.StatusOK() {
		return ComponentAddResult{}, statusErr(env)
	}
	args, err := DecodeArgs(env.Payload)
	if err != nil {
		return ComponentAddResult{}, newErr(KindCodec, err)
	}
	return ComponentAddResult{InstanceID: stringArg(args, "instance_id")}, nil
}

// BuildPlayerResult mirrors the peer's BuildPlayer response arm.
type BuildPlayerResult struct {
	OutputPath string
	Succeeded  bool
}

// BuildPlayer triggers a player build for the given target/outputPath. This
// is a long-running operation; callers should pass a generous timeout.
func (c *Client) BuildPlayer(ctx context.Context, target, outputPath string, timeout time.Duration) (BuildPlayerResult, error) {
	payload, err := EncodeArgs(map[string]any{"target": target, "output_path": outputPath})
	if err != nil {
		return BuildPlayerResult{}, newErr(KindCodec, err)
	}
	env, err := c.Request(ctx, "build_player", payload, timeout)
	if err != nil {
		return BuildPlayerResult{}, err
	}
	if !env.StatusOK() {
		return BuildPlayerResult{}, statusErr(env)
	}
	args, err := DecodeArgs(env.Payload)
	if err != nil {
		return BuildPlayerResult{}, newErr(KindCodec, err)
	}
	return BuildPlayerResult{OutputPath: stringArg(args, "output_path"), Succeeded: boolArg(args, "succeeded")}, nil
}

func statusErr(env Envelope) error {
	var kind Kind
	switch env.StatusCode {
	case StatusInvalidArgument:
		kind = KindValidation
	case StatusResourceExhausted:
		kind = KindResourceExhausted
	default:
		kind = KindProtocol
	}
	return newErr(kind, errors.New(env.Message))
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func boolArg(args map[string]any, key string) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return false
}
