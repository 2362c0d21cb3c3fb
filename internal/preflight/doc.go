// Package preflight provides readiness checks for the directories, binaries,
// and services matte depends on.
//
// The doctor command runs RunAll and CheckSystemDeps to display environment
// health before a user commits to a large batch. Individual checks are also
// usable on their own.
package preflight
