// Package engine is the composition root that assembles the newsroom from
// configuration: model deployments, tool sources, the agent roster and the
// pipeline that runs them. Frontends (the CLI, the MCP server) talk to Engine
// and observe a run through a newsroom.Observer; they never wire lower-level
// packages themselves.
package engine
