// Package verification decides whether an agent action may stand.
//
// A Pipeline first runs the lifecycle hooks for the action's operation. A
// blocking hook failure fails verification immediately. Otherwise the
// configured static checks (lint, types, tests) run concurrently, scoped to
// the touched file when there is one, and any failure fails verification
// with feedback the agent can act on.
package verification
