package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/agentic-research/rucksack/internal/rucksack"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the stores to MCP clients over stdio",
	Long: `Mcp speaks the Model Context Protocol on stdin/stdout so agents can
browse and edit the stores: listing items, saving new ones, deleting,
renaming and materializing payloads.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.ServeStdio(newMCPServer())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func newMCPServer() *server.MCPServer {
	s := server.NewMCPServer("rucksack", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("List the clip items in both scopes with their index, name and kind."),
	), listItemsHandler)

	s.AddTool(mcp.NewTool("save_item",
		mcp.WithDescription("Save a new clip item into a scope."),
		mcp.WithString("scope", mcp.Required(), mcp.Enum("global", "local"),
			mcp.Description("Store to save into.")),
		mcp.WithString("name", mcp.Required(),
			mcp.Description("Item name shown in listings.")),
		mcp.WithString("type", mcp.Required(), mcp.Enum("node", "vector", "text", "style"),
			mcp.Description("Payload type: a .kra node document, an SVG vector shape, an SVG text shape or an ASL layer style.")),
		mcp.WithString("payload",
			mcp.Description("Inline SVG or ASL payload. Give this or path.")),
		mcp.WithString("path",
			mcp.Description("File to read the payload from. Node items need this.")),
		mcp.WithString("kind",
			mcp.Description("Node kind for node items, e.g. LAYER, LAYER_GROUP or MASK_SELECTION. Defaults to LAYER.")),
	), saveItemHandler)

	s.AddTool(mcp.NewTool("delete_item",
		mcp.WithDescription("Delete the item at an index."),
		mcp.WithString("scope", mcp.Required(), mcp.Enum("global", "local"),
			mcp.Description("Store to delete from.")),
		mcp.WithNumber("index", mcp.Required(),
			mcp.Description("Item index as shown by list_items.")),
	), deleteItemHandler)

	s.AddTool(mcp.NewTool("rename_item",
		mcp.WithDescription("Rename the item at an index."),
		mcp.WithString("scope", mcp.Required(), mcp.Enum("global", "local"),
			mcp.Description("Store holding the item.")),
		mcp.WithNumber("index", mcp.Required(),
			mcp.Description("Item index as shown by list_items.")),
		mcp.WithString("name", mcp.Required(),
			mcp.Description("New item name.")),
	), renameItemHandler)

	s.AddTool(mcp.NewTool("use_item",
		mcp.WithDescription("Materialize an item's payload, either inline or into a file."),
		mcp.WithString("scope", mcp.Required(), mcp.Enum("global", "local"),
			mcp.Description("Store holding the item.")),
		mcp.WithString("name", mcp.Required(),
			mcp.Description("Item name; the first match wins.")),
		mcp.WithString("out",
			mcp.Description("Write the payload to this file instead of returning it. Node items need this.")),
	), useItemHandler)

	return s
}

func listItemsHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	global, local, err := openStores(rucksack.OSRoot())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var b strings.Builder
	for _, s := range []*rucksack.Store{global, local} {
		fmt.Fprintf(&b, "%s:\n", s.Scope())
		if s.Len() == 0 {
			b.WriteString("  (empty)\n")
			continue
		}
		for i, item := range s.Items() {
			fmt.Fprintf(&b, "  %d  %s  (%s)\n", i, item.Name, rucksack.Describe(item.Data))
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func saveItemHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope, err := req.RequireString("scope")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload := req.GetString("payload", "")
	if path := req.GetString("path", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("read %s: %s", path, err)), nil
		}
		payload = string(data)
	}
	if payload == "" {
		return mcp.NewToolResultError("empty payload: give payload or path"), nil
	}

	s, err := openScope(rucksack.OSRoot(), rucksack.Scope(scope))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	switch typ {
	case "node":
		kind, err := rucksack.ParseNodeKind(req.GetString("kind", "LAYER"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := saveNode(s, name, kind, []byte(payload)); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	case "vector":
		err = s.Add(name, rucksack.Vector{SVG: payload})
	case "text":
		err = s.Add(name, rucksack.Vector{SVG: payload, IsText: true})
	case "style":
		err = s.Add(name, rucksack.LayerStyle{ASL: payload})
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown item type %q", typ)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved %q into the %s scope", name, scope)), nil
}

func deleteItemHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, i, err := storeItemArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := s.Item(i).Name
	if err := s.Delete(i); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted %q from the %s scope", name, s.Scope())), nil
}

func renameItemHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, i, err := storeItemArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	old := s.Item(i).Name
	if err := s.Rename(i, name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("renamed %q to %q", old, name)), nil
}

func useItemHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope, err := req.RequireString("scope")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s, err := openScope(rucksack.OSRoot(), rucksack.Scope(scope))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	for _, item := range s.Items() {
		if item.Name != name {
			continue
		}
		var payload []byte
		inline := true
		switch data := item.Data.(type) {
		case rucksack.NodeRef:
			if payload, err = s.ReadNode(data.Filename); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			inline = false
		case rucksack.Vector:
			payload = []byte(data.SVG)
		case rucksack.LayerStyle:
			payload = []byte(data.ASL)
		}
		out := req.GetString("out", "")
		if out == "" {
			if !inline {
				return mcp.NewToolResultError("node payloads are binary: give out"), nil
			}
			return mcp.NewToolResultText(string(payload)), nil
		}
		if err := os.WriteFile(out, payload, 0o644); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("write %s: %s", out, err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("wrote %s", out)), nil
	}
	return mcp.NewToolResultError(fmt.Sprintf("no item named %q in the %s scope", name, scope)), nil
}

// storeItemArgs resolves the scope/index argument pair the mutating
// tools share.
func storeItemArgs(req mcp.CallToolRequest) (*rucksack.Store, int, error) {
	scope, err := req.RequireString("scope")
	if err != nil {
		return nil, 0, err
	}
	i, err := req.RequireInt("index")
	if err != nil {
		return nil, 0, err
	}
	s, err := openScope(rucksack.OSRoot(), rucksack.Scope(scope))
	if err != nil {
		return nil, 0, err
	}
	if i < 0 || i >= s.Len() {
		return nil, 0, fmt.Errorf("no item at index %d in the %s scope", i, s.Scope())
	}
	return s, i, nil
}
