// Package server exposes the image generation tools over the Model Context
// Protocol.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/comeonzhj/jimengpic-mcp/internal/config"
	"github.com/comeonzhj/jimengpic-mcp/internal/jimeng"
	"github.com/comeonzhj/jimengpic-mcp/internal/sign"
)

const (
	serverName    = "jimengpic"
	serverVersion = "0.2.0"
)

var ratioValues = []string{"1:1", "4:3", "3:4", "16:9", "9:16"}

// Generator produces an image URL for a prompt (allows mocking in tests).
type Generator interface {
	Generate(ctx context.Context, prompt string, width, height int) (string, error)
}

type Server struct {
	client  Generator
	general jimeng.PromptBuilder
	poster  jimeng.PromptBuilder
}

func New(cfg *config.Config) *Server {
	client := jimeng.NewClient(jimeng.Config{
		Credentials: sign.Credentials{
			AccessKey: cfg.Jimeng.AccessKey,
			SecretKey: cfg.Jimeng.SecretKey,
		},
		Sign: sign.Config{
			Endpoint: cfg.Jimeng.Endpoint,
			Host:     cfg.Jimeng.Host,
			Region:   cfg.Jimeng.Region,
			Service:  cfg.Jimeng.Service,
		},
		ReqKey: cfg.Jimeng.ReqKey,
	})
	return NewWithClient(client)
}

// NewWithClient creates a Server backed by a custom Generator.
func NewWithClient(client Generator) *Server {
	return &Server{
		client:  client,
		general: jimeng.GeneralPrompt{},
		poster:  jimeng.PosterPrompt{},
	}
}

// MCPServer builds the MCP server with both tools registered. Exposed
// separately from Run so tests can connect over in-memory transports.
func (s *Server) MCPServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	srv.AddTool(&mcp.Tool{
		Name:        "generate_image",
		Description: "Generate an image from a natural-language description using Jimeng AI. Returns the image URL.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"description": map[string]any{
					"type":        "string",
					"description": "What the image should show",
				},
				"ratio": map[string]any{
					"type":        "string",
					"description": "Aspect ratio of the image, defaults to 1:1",
					"enum":        ratioValues,
				},
			},
			"required": []string{"description"},
		},
	}, s.handleGenerateImage)

	srv.AddTool(&mcp.Tool{
		Name:        "generate_text_image",
		Description: "Generate a poster-style image that renders the given text legibly. Returns the image URL.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{
					"type":        "string",
					"description": "Text to render on the image",
				},
				"ratio": map[string]any{
					"type":        "string",
					"description": "Aspect ratio of the image, defaults to 1:1",
					"enum":        ratioValues,
				},
			},
			"required": []string{"text"},
		},
	}, s.handleGenerateTextImage)

	return srv
}

// Run serves the tools over stdio until the context is cancelled or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	log.Printf("[server] %s %s serving on stdio", serverName, serverVersion)
	return s.MCPServer().Run(ctx, &mcp.StdioTransport{})
}

type generateImageArgs struct {
	Description string `json:"description"`
	Ratio       string `json:"ratio"`
}

type generateTextImageArgs struct {
	Text  string `json:"text"`
	Ratio string `json:"ratio"`
}

func (s *Server) handleGenerateImage(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args generateImageArgs
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Description == "" {
		return errorResult("description is required"), nil
	}

	width, height := s.general.Size(args.Ratio)
	return s.generate(ctx, s.general.Build(args.Description), width, height)
}

func (s *Server) handleGenerateTextImage(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args generateTextImageArgs
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if args.Text == "" {
		return errorResult("text is required"), nil
	}

	width, height := s.poster.Size(args.Ratio)
	return s.generate(ctx, s.poster.Build(args.Text), width, height)
}

// generate runs one tool invocation. Every failure becomes a user-visible
// tool error; nothing propagates as a protocol fault.
func (s *Server) generate(ctx context.Context, prompt string, width, height int) (*mcp.CallToolResult, error) {
	url, err := s.client.Generate(ctx, prompt, width, height)
	switch {
	case errors.Is(err, jimeng.ErrMissingCredentials):
		return errorResult("Volcengine credentials are not configured. " +
			"Set JIMENG_ACCESS_KEY and JIMENG_SECRET_KEY, or edit " + config.ConfigPath()), nil
	case err != nil:
		log.Printf("[server] generate failed: %v", err)
		return errorResult("image generation failed: " + err.Error()), nil
	case url == "":
		return textResult("The service returned no image for this prompt."), nil
	}
	return textResult(url), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
