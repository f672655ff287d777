package main

import (
	"os"

	"github.com/alecthomas/kong"
)

// CLI is the top-level command structure for canvas-mcp.
type CLI struct {
	Config string `short:"c" type:"path" env:"CANVAS_CONFIG" help:"Path to the YAML configuration file."`
	Debug  bool   `env:"CANVAS_DEBUG" help:"Enable debug logging."`

	Serve   ServeCmd   `cmd:"" default:"withargs" help:"Run the MCP server (stdio) or the HTTP API."`
	Embed   EmbedCmd   `cmd:"" help:"Embed every note that lacks an embedding, then exit."`
	Reembed ReembedCmd `cmd:"" help:"Drop all stored embeddings and embed every note again."`
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("canvas-mcp"),
		kong.Description("Spatial note canvas with an MCP server, a REST API and semantic search."),
		kong.UsageOnError(),
		kong.Exit(func(code int) {
			os.Exit(code)
		}),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
