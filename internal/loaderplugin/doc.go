// Package loaderplugin resolves module names carrying loader-plugin
// prefixes ("text!tmpl.html", "css!theme!base.css") to build targets and
// collects the sources each plugin needs at runtime.
//
// Handlers are kept in an explicit Registry created by the caller. A
// handler strips its own prefix through Unwrap and hands the remainder to
// the registry, which looks up the next plugin in the chain until no known
// prefix is left.
package loaderplugin
