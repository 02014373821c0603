// Package conds implements the shared condition state machine of cmdspec.
//
// Conditions are named boolean flags declared at a tester and shared by
// reference with every descendant. Gates evaluate all/one_of/none_of
// expressions over the live condition set and flip states through their
// on_success/on_error maps after a test ran.
package conds
