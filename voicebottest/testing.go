// Package voicebottest implements helpers to write unit tests for bots and
// their modules.
package voicebottest

// TestingT is the minimum required subset of the testing API used in the
// voicebottest package. TestingT is implemented both by *testing.T and
// *testing.B.
type TestingT interface {
	Logf(string, ...interface{})
	Errorf(string, ...interface{})
	Fail()
	Failed() bool
	Fatal(args ...interface{})
	Name() string
	FailNow()
	Helper()
}
