package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"scout/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store *storage.Store
}

// NewMCPServer creates an MCP server exposing the company intelligence base
// as tools and resources. Everything is read-only.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"scout",
		"0.1.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("scout: evidence-gated company intelligence. Every fact carries verbatim source quotes; use evidence_for to see why a fact is believed."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("company_profile",
			mcp.WithDescription("Return a company's current profile: record, known people, and known events."),
			mcp.WithString("company_id", mcp.Description("Company ID"), mcp.Required()),
		),
		mcpCompanyProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("recent_changes",
			mcp.WithDescription("List the most recently detected changes for a company (new people, role updates, new events, new funding rounds)."),
			mcp.WithString("company_id", mcp.Description("Company ID"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of changes (default 20)")),
		),
		mcpRecentChanges(deps),
	)

	s.AddTool(
		mcp.NewTool("evidence_for",
			mcp.WithDescription("Return the evidence records backing a person or event, each with the source URL and verbatim quote."),
			mcp.WithString("object_type", mcp.Description("Either 'person' or 'event'"), mcp.Required()),
			mcp.WithString("object_id", mcp.Description("ID of the person or event"), mcp.Required()),
		),
		mcpEvidenceFor(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"scout://companies",
			"Tracked Companies",
			mcp.WithResourceDescription("All tracked companies as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCompanies(deps),
	)

	return s
}

func mcpCompanyProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		companyID, err := req.RequireString("company_id")
		if err != nil {
			return mcpError("company_id is required"), nil
		}

		company, err := deps.Store.GetCompany(ctx, companyID)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("company %s not found", companyID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get company: %v", err)), nil
		}

		people, err := deps.Store.ListPeople(ctx, companyID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list people: %v", err)), nil
		}
		events, err := deps.Store.ListEvents(ctx, companyID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list events: %v", err)), nil
		}
		if people == nil {
			people = []storage.Person{}
		}
		if events == nil {
			events = []storage.Event{}
		}

		profile := struct {
			Company storage.Company  `json:"company"`
			People  []storage.Person `json:"people"`
			Events  []storage.Event  `json:"events"`
		}{company, people, events}

		b, err := json.Marshal(profile)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecentChanges(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		companyID, err := req.RequireString("company_id")
		if err != nil {
			return mcpError("company_id is required"), nil
		}

		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		if limit > 200 {
			limit = 200
		}

		changes, err := deps.Store.ListChanges(ctx, companyID, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list changes: %v", err)), nil
		}
		if changes == nil {
			changes = []storage.Change{}
		}

		b, err := json.Marshal(changes)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal changes: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpEvidenceFor(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		objectType, err := req.RequireString("object_type")
		if err != nil {
			return mcpError("object_type is required"), nil
		}
		if objectType != "person" && objectType != "event" {
			return mcpError("object_type must be person or event"), nil
		}
		objectID, err := req.RequireString("object_id")
		if err != nil {
			return mcpError("object_id is required"), nil
		}

		evidence, err := deps.Store.ListEvidence(ctx, objectType, objectID, 50)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list evidence: %v", err)), nil
		}
		if evidence == nil {
			evidence = []storage.Evidence{}
		}

		b, err := json.Marshal(evidence)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal evidence: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceCompanies(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		companies, err := deps.Store.ListCompanies(ctx, 200)
		if err != nil {
			return nil, fmt.Errorf("failed to list companies: %w", err)
		}
		if companies == nil {
			companies = []storage.Company{}
		}

		b, err := json.Marshal(companies)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal companies: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
