/*
Package main is the entry point for the graphrag-agent CLI.

graphrag-agent answers natural language questions about a Neo4j knowledge
graph with a tool-calling language model, keeping per-session history.

Usage:
  graphrag-agent [command]

Available Commands:
  ask         Ask a single question
  chat        Start an interactive question-answering session
  sessions    List conversation sessions
  history     Show the questions and answers of a session
  delete      Delete a session and its messages
  index       Index graph entities for semantic search
  stats       Show vector index, session and tool usage statistics
  serve       Run the MCP server (stdio transport)
  verify      Verify configuration and connections
  init        Write a default configuration file
  version     Show version information

Examples:
  # Write a config and check connections
  graphrag-agent init
  graphrag-agent verify

  # Build the semantic index, then ask
  graphrag-agent index
  graphrag-agent ask "Who works at Acme?"
*/
package main

import (
	"fmt"
	"os"

	"github.com/khanglvm/graphrag-agent/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
