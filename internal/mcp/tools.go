package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions. Descriptions are what an agent reads to decide when to
// call a tool, so they lead with the effect, not the mechanism.

var createToolDef = mcp.NewTool("project_create",
	mcp.WithDescription("Create a new empty Python project. The isolated environment is created on first build."),
	mcp.WithString("name", mcp.Required(),
		mcp.Description("Project name; becomes the directory name after sanitization")),
)

var buildToolDef = mcp.NewTool("project_build",
	mcp.WithDescription("Generate code for a prompt, run it in the project's environment, and auto-correct failures until it succeeds or the retry budget runs out. Omit the prompt to re-run and correct the existing source."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Project to build")),
	mcp.WithString("prompt",
		mcp.Description("Natural-language description of what the script should do")),
)

var cancelToolDef = mcp.NewTool("project_cancel",
	mcp.WithDescription("Cancel the project's in-flight build."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Project whose build to cancel")),
)

var runToolDef = mcp.NewTool("project_run",
	mcp.WithDescription("Run the project's entry script once, with no generation or correction."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Project to run")),
	mcp.WithNumber("timeout_secs",
		mcp.Description("Per-run timeout in seconds; defaults to the configured limit")),
)

var listToolDef = mcp.NewTool("project_list",
	mcp.WithDescription("List all projects, most recently updated first."),
)

var showToolDef = mcp.NewTool("project_show",
	mcp.WithDescription("Show one project: environment status, dependencies, history summary."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Project to show")),
	mcp.WithBoolean("with_source",
		mcp.Description("Include the newest revision's source text")),
)

var historyToolDef = mcp.NewTool("project_history",
	mcp.WithDescription("List the project's revision history: every generated or corrected version of its source."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Project whose history to list")),
	mcp.WithBoolean("with_source", mcp.Description("Include source text for every revision")),
	mcp.WithNumber("seq", mcp.Description("Return only this revision, with its source")),
)

var installToolDef = mcp.NewTool("project_install",
	mcp.WithDescription("Install packages into the project's environment and record them as dependencies."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Project to install into")),
	mcp.WithArray("packages", mcp.Required(),
		mcp.Description("Package names to install"),
		mcp.Items(map[string]any{"type": "string"})),
)

var recreateToolDef = mcp.NewTool("project_recreate",
	mcp.WithDescription("Delete and rebuild the project's environment, reinstalling its recorded dependencies. Use when the environment is stale or failed."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Project whose environment to rebuild")),
)

var deleteToolDef = mcp.NewTool("project_delete",
	mcp.WithDescription("Delete a project: registry entry, history, and files."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Project to delete")),
	mcp.WithBoolean("keep_files", mcp.Description("Leave the project directory on disk")),
)

var exportToolDef = mcp.NewTool("project_export",
	mcp.WithDescription("Export the project's files to a zip archive, excluding the environment."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Project to export")),
	mcp.WithString("dest", mcp.Description("Destination zip path; defaults to <name>.zip")),
)
