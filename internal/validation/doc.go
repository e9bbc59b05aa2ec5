// Package validation runs the post-validation checks over a drafted
// discharge narrative. Checks are built by name from a Registry and run in
// a fixed order by a Pipeline.
package validation
