// Package io reads and writes diagram states and command scripts.
//
// # State Files
//
// A state file holds the committed diagram: nodes, edges and metadata. JSON
// uses the same field names as the engine's model types:
//
//	{
//	  "nodes": [
//	    {"id": "a", "position": {"x": 0, "y": 0}, "size": {"width": 80, "height": 40}},
//	    {"id": "b", "position": {"x": 200, "y": 0}}
//	  ],
//	  "edges": [{"id": "ab", "source": "a", "target": "b"}],
//	  "metadata": {"viewport": {"x": 0, "y": 0, "scale": 1}}
//	}
//
// TOML files use snake_case keys with [[nodes]] and [[edges]] tables. The
// format is picked from the file extension; anything other than .toml is
// read as JSON.
//
// Reading validates the state: ids must be non-empty and unique, and edges
// must reference existing nodes. A missing viewport scale defaults to 1.
//
// # Command Scripts
//
// A script is a sequence of command envelopes, either as a JSON array or as
// one envelope per line:
//
//	{"command": "select", "payload": {"nodeIds": ["a"]}}
//	{"command": "moveNodesBy", "payload": {"nodeIds": ["a"], "delta": {"x": 10, "y": 0}}}
//
// Blank lines and lines starting with # are ignored.
package io
