//go:build ruleguard

// Package gorules holds go-ruleguard checks for the audio router, run
// through gocritic's ruleguard checker.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// StructuredLogging reports printing from library packages. Library code
// logs through the module logger so output carries level and module fields.
func StructuredLogging(m dsl.Matcher) {
	m.Match(
		`fmt.Println($*_)`,
		`fmt.Printf($*_)`,
		`log.Println($*_)`,
		`log.Printf($*_)`,
	).
		Where(m.File().PkgPath.Matches(`/internal/`) && !m.File().Name.Matches(`_test\.go$`)).
		Report("use the package logger (GetLogger()) instead of printing")
}

// EnhancedErrors reports standard library error constructors in internal
// packages. Errors built with internal/errors carry a component and a
// category that the API and telemetry rely on.
func EnhancedErrors(m dsl.Matcher) {
	m.Import("errors")
	m.Match(`errors.New($msg)`).
		Where(m.File().PkgPath.Matches(`/internal/`) &&
			!m.File().PkgPath.Matches(`/internal/errors$`) &&
			!m.File().Name.Matches(`_test\.go$`) &&
			m.File().Imports("errors")).
		Report("use errors.NewStd($msg) or the errors builder from internal/errors")
}

// WaitGroupGo reports the Add/Done goroutine pattern that sync.WaitGroup.Go replaces.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { ... })").
		Suggest("$wg.Go(func() { $*_ })")

	m.Match(`$wg.Add(1)`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("consider $wg.Go(), which calls Add(1) itself")
}

// BenchmarkLoop reports b.N loops; b.Loop keeps setup out of the timed region.
func BenchmarkLoop(m dsl.Matcher) {
	m.Match(`for $i := 0; $i < $b.N; $i++ { $*body }`).
		Where(m["b"].Type.Is("*testing.B")).
		Report("use for $b.Loop() { ... }").
		Suggest("for $b.Loop() { $body }")
}

// TestSleep reports fixed sleeps in tests, which make them slow and flaky.
func TestSleep(m dsl.Matcher) {
	m.Match(`time.Sleep($d)`).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("wait on a condition (require.Eventually, testutil.WaitFor) instead of time.Sleep")
}
