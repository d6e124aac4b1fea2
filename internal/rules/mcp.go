package rules

import (
	"strings"

	"go.uber.org/zap"

	"github.com/dotcommander/agentlint/internal/cue"
	"github.com/dotcommander/agentlint/internal/frontend"
	"github.com/dotcommander/agentlint/internal/logger"
	"github.com/dotcommander/agentlint/internal/types"
)

// DefaultMCPProtocolVersion is checked when no mcp_protocol revision is pinned.
const DefaultMCPProtocolVersion = "2025-06-18"

const minToolDescriptionLen = 10

// JSONSchemaTypes are the primitive type names accepted in inputSchema.
var JSONSchemaTypes = []string{"string", "number", "integer", "boolean", "object", "array", "null"}

// mcpValidator checks MCP tool definitions and JSON-RPC messages.
type mcpValidator struct{}

func (mcpValidator) Name() string { return "mcp" }

func (mcpValidator) Rules() []string {
	return []string{"MCP-001", "MCP-002", "MCP-003", "MCP-004", "MCP-005"}
}

func (mcpValidator) Validate(ctx *Context) {
	root, ok := ctx.Doc.JSON.Object()
	if !ok {
		return
	}

	checkJSONRPCVersion(ctx, root)
	if ctx.Enabled("MCP-005") {
		checkProtocolVersion(ctx, root)
	}

	tools, fromArray := mcpTools(root)
	for i, tool := range tools {
		line, col := toolPosition(ctx, i, fromArray)
		checkTool(ctx, i+1, tool, line, col)
	}
}

func checkJSONRPCVersion(ctx *Context, root map[string]any) {
	raw, ok := root["jsonrpc"]
	if !ok {
		return
	}
	js := ctx.Doc.JSON
	line, col := js.KeyPosition("jsonrpc")
	version, isString := raw.(string)
	if !isString {
		ctx.Report("MCP-001", line, col, "JSON-RPC version must be a string")
		return
	}
	if version == "2.0" {
		return
	}
	d := ctx.Diag("MCP-001", line, col, "Invalid JSON-RPC version '%s', must be '2.0'", version)
	if start, end, ok := js.ValueSpan("jsonrpc", frontend.Compact(version)); ok {
		d = d.WithFix(types.Replace(start, end, `"2.0"`, "set jsonrpc to '2.0'", types.CertaintyHigh))
	}
	ctx.Emit(d)
}

// checkProtocolVersion compares the negotiated protocolVersion of an
// initialize request or response with the expected revision.
func checkProtocolVersion(ctx *Context, root map[string]any) {
	version, ok := protocolVersion(root)
	if !ok {
		return
	}
	expected := DefaultMCPProtocolVersion
	if rev, pinned := ctx.Config.SpecRevision("mcp_protocol"); pinned {
		expected = rev
	}
	if version == expected {
		return
	}
	line, col := ctx.Doc.JSON.KeyPosition("protocolVersion")
	ctx.Report("MCP-005", line, col, "Protocol version '%s' does not match expected '%s'", version, expected)
}

func protocolVersion(root map[string]any) (string, bool) {
	for _, key := range []string{"params", "result"} {
		if obj, ok := root[key].(map[string]any); ok {
			if v, ok := obj["protocolVersion"].(string); ok {
				return v, true
			}
		}
	}
	v, ok := root["protocolVersion"].(string)
	return v, ok
}

// mcpTools returns the tool objects of a tools array, or the root itself when
// it looks like a single tool. fromArray reports which shape was found.
func mcpTools(root map[string]any) (tools []map[string]any, fromArray bool) {
	if arr, ok := root["tools"].([]any); ok {
		for _, item := range arr {
			if tool, ok := item.(map[string]any); ok {
				tools = append(tools, tool)
			}
		}
		return tools, true
	}
	for _, key := range []string{"name", "inputSchema", "description"} {
		if _, ok := root[key]; ok {
			return []map[string]any{root}, false
		}
	}
	return nil, false
}

func toolPosition(ctx *Context, index int, fromArray bool) (int, int) {
	js := ctx.Doc.JSON
	if fromArray {
		if off, ok := js.ElementOffset("tools", index); ok {
			return js.Position(off)
		}
		return js.KeyPosition("tools")
	}
	return 1, 1
}

func checkTool(ctx *Context, n int, tool map[string]any, line, col int) {
	name, _ := tool["name"].(string)
	desc, _ := tool["description"].(string)
	schema, hasSchema := tool["inputSchema"]

	if ctx.Enabled("MCP-002") {
		if strings.TrimSpace(name) == "" {
			ctx.Report("MCP-002", line, col, "Tool #%d: Missing required field 'name'", n)
		}
		if strings.TrimSpace(desc) == "" {
			ctx.Report("MCP-002", line, col, "Tool #%d: Missing required field 'description'", n)
		}
		if !hasSchema {
			ctx.Report("MCP-002", line, col, "Tool #%d: Missing required field 'inputSchema'", n)
		}
		violations, err := schemaViolations(cue.DefTool, "mcp", tool)
		if err != nil {
			logger.L().Warn("schema check failed", zap.String("file", ctx.Rel), zap.Error(err))
		}
		for _, viol := range violations {
			ctx.Report("MCP-002", line, col, "Tool #%d: %s", n, viol)
		}
	}

	if hasSchema && ctx.Enabled("MCP-003") {
		for _, msg := range inputSchemaErrors(schema) {
			ctx.Report("MCP-003", line, col, "Tool #%d: Invalid inputSchema: %s", n, msg)
		}
	}

	if trimmed := strings.TrimSpace(desc); trimmed != "" && len(desc) < minToolDescriptionLen {
		ctx.Report("MCP-004", line, col,
			"Tool #%d: Tool description is too short (%d chars), should be at least %d characters",
			n, len(trimmed), minToolDescriptionLen)
	}
}

// inputSchemaErrors checks the top-level shape of a JSON Schema object.
func inputSchemaErrors(schema any) []string {
	obj, ok := schema.(map[string]any)
	if !ok {
		return []string{"inputSchema must be an object"}
	}

	var errs []string
	if t, ok := obj["type"]; ok {
		switch t := t.(type) {
		case string:
			if !contains(JSONSchemaTypes, t) {
				errs = append(errs, "Invalid JSON Schema type '"+t+"', expected one of: "+strings.Join(JSONSchemaTypes, ", "))
			}
		case []any:
			for _, el := range t {
				s, ok := el.(string)
				if !ok {
					errs = append(errs, "'type' array elements must be strings")
					continue
				}
				if !contains(JSONSchemaTypes, s) {
					errs = append(errs, "Invalid JSON Schema type '"+s+"' in type array")
				}
			}
		default:
			errs = append(errs, "'type' field must be a string or array of strings")
		}
	}

	if props, ok := obj["properties"]; ok {
		if _, isObj := props.(map[string]any); !isObj {
			errs = append(errs, "'properties' field must be an object")
		}
	}

	if req, ok := obj["required"]; ok {
		arr, isArr := req.([]any)
		if !isArr {
			errs = append(errs, "'required' field must be an array")
		} else {
			for _, el := range arr {
				if _, isStr := el.(string); !isStr {
					errs = append(errs, "'required' array must contain only strings")
					break
				}
			}
		}
	}
	return errs
}
