// Package hooks runs user-configured shell commands at agent lifecycle
// events.
//
// Hooks are declared in a YAML, TOML or JSON file:
//
//	hooks:
//	  - name: gofmt
//	    type: PostEdit
//	    command: test -z "$(gofmt -l "$GAV_FILE_PATH")"
//	    timeout_ms: 10000
//	    failure_mode: block
//
// Each hook receives the event payload as GAV_* environment variables and
// as JSON on stdin. A hook whose failure_mode is "block" stops the agent
// when it fails; "continue" hooks are reported only.
package hooks
