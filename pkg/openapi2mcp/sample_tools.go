package openapi2mcp

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const (
	CurrentUserToolName = "aap_current_user"
	RecentJobsToolName  = "aap_recent_jobs"

	controllerService = "controller"
)

// SampleTools returns hand-written controller tools that complement the
// generated ones.
func SampleTools(caller *ToolCaller) []mcpserver.ServerTool {
	return []mcpserver.ServerTool{
		{
			Tool: mcp.NewTool(CurrentUserToolName,
				mcp.WithDescription("return the current logged-in AAP user information"),
			),
			Handler: func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return caller.Request(ctx, controllerService, http.MethodGet, "/v2/me/", nil, nil), nil
			},
		},
		{
			Tool: mcp.NewTool(RecentJobsToolName,
				mcp.WithDescription("return the latest AAP controller jobs information"),
				mcp.WithString("order_by", mcp.Description("Sort order"), mcp.DefaultString("-finished")),
				mcp.WithNumber("page", mcp.Description("Page number"), mcp.DefaultNumber(1)),
				mcp.WithNumber("page_size", mcp.Description("Jobs per page"), mcp.DefaultNumber(10)),
			),
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				query := url.Values{}
				query.Set("order_by", req.GetString("order_by", "-finished"))
				query.Set("page", strconv.Itoa(req.GetInt("page", 1)))
				query.Set("page_size", strconv.Itoa(req.GetInt("page_size", 10)))
				return caller.Request(ctx, controllerService, http.MethodGet, "/api/v2/unified_jobs/", query, nil), nil
			},
		},
	}
}
