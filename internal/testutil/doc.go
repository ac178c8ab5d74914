// Package testutil provides testing utilities and helpers.
//
// This package contains fixtures for building realistic event batches, a
// recording batch consumer, and logger helpers shared by the package tests.
//
// This package is internal and should not be imported by external code.
package testutil
