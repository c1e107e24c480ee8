// Package mcp exposes the diagnostic engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/realdiag-server/internal/domain"
	"github.com/realdiag-server/internal/feedback"
	"github.com/realdiag-server/internal/service"
)

// FeedbackRecorder is the part of service.FeedbackService the tools use.
type FeedbackRecorder interface {
	Submit(ctx context.Context, req service.SubmitFeedbackRequest) (*feedback.Feedback, error)
	List(ctx context.Context, limit, offset int) (*service.FeedbackPage, error)
	Export(ctx context.Context, w io.Writer) error
}

// Server represents the RealDiag MCP server
type Server struct {
	engine    domain.DiagnosticEngine
	feedback  FeedbackRecorder
	mcpServer *mcp.Server
	exportDir string // where export_feedback writes; empty disables it
	create    func(path string) (io.WriteCloser, error)
	logger    *logrus.Logger
}

// NewServer creates an MCP server with every tool registered. feedback may
// be nil, in which case the feedback tools report an error result.
func NewServer(engine domain.DiagnosticEngine, feedback FeedbackRecorder, info domain.AppInfo, logger *logrus.Logger) *Server {
	serverInfo := &mcp.Implementation{
		Name:    "realdiag-mcp-server",
		Version: info.Version,
	}

	server := &Server{
		engine:    engine,
		feedback:  feedback,
		mcpServer: mcp.NewServer(serverInfo, nil),
		create:    func(path string) (io.WriteCloser, error) { return os.Create(path) },
		logger:    logger,
	}
	server.registerTools()

	return server
}

// Run serves MCP requests over transport until ctx is cancelled or the
// client disconnects.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("Starting RealDiag MCP Server...")

	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// registerTools registers the engine and feedback tools with the SDK
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_trees",
		Description: "List the available decision trees (id and title)",
	}, s.handleListTrees)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "evaluate_tree",
		Description: "Walk a decision tree with patient facts and return the visited path, recommended tests, provisional diagnoses and trace",
	}, s.handleEvaluateTree)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_families",
		Description: "List rule families with version, source and rule count",
	}, s.handleListFamilies)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_family",
		Description: "Return the full rule document of a family",
	}, s.handleGetFamily)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_reference",
		Description: "Return the reference listing (family, count, rules) of a family",
	}, s.handleGetReference)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search_rules",
		Description: "Keyword search over rule ids, labels, presentations and ICD-10 codes",
	}, s.handleSearchRules)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_rule",
		Description: "Look up a single rule by id",
	}, s.handleGetRule)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search_by_symptoms",
		Description: "Rank rules by how well their presentations match free-text symptoms",
	}, s.handleSearchBySymptoms)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_search_suggestions",
		Description: "List the distinct presentation fragments usable as symptom search terms",
	}, s.handleSearchSuggestions)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "submit_feedback",
		Description: "Record a clinician verdict (agree, disagree, unsure) on a suggested rule",
	}, s.handleSubmitFeedback)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_feedback",
		Description: "Page through recorded clinician feedback, newest first",
	}, s.handleListFeedback)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "export_feedback",
		Description: "Export all saved feedback to a JSON file in the data directory for backup",
	}, s.handleExportFeedback)

	s.logger.Debug("Registered MCP tools")
}
