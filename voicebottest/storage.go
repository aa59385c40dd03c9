package voicebottest

import (
	"reflect"

	"go.uber.org/zap/zaptest"

	"github.com/fgrosse/voicebot"
)

// Storage wraps a voicebot.Storage for unit testing purposes.
type Storage struct {
	*voicebot.Storage
	T TestingT
}

// NewStorage creates a new in-memory Storage.
func NewStorage(t TestingT) *Storage {
	logger := zaptest.NewLogger(t)
	return &Storage{
		Storage: voicebot.NewStorage(logger),
		T:       t,
	}
}

// MustSet assigns the value to the given key and fails the test immediately if
// there was an error.
func (s *Storage) MustSet(key string, value interface{}) {
	err := s.Set(key, value)
	if err != nil {
		s.T.Fatal("Failed to set key in storage:", err)
	}
}

// AssertEquals checks that the actual value under the given key equals an
// expected value.
func (s *Storage) AssertEquals(key string, expectedVal interface{}) {
	s.T.Helper()

	typ := reflect.TypeOf(expectedVal)
	actual := reflect.New(typ)
	ok, err := s.Get(key, actual.Interface())
	if err != nil {
		s.T.Errorf("Error while getting key %q from storage: %v", key, err)
		return
	}

	if !ok {
		s.T.Errorf("Expected storage to contain key %q but it does not", key)
		return
	}

	actualVal := actual.Elem().Interface()
	if !reflect.DeepEqual(expectedVal, actualVal) {
		s.T.Errorf("Value of key %q does not equal expected value\ngot:  %#v\nwant: %#v", key, actualVal, expectedVal)
	}
}

// AssertMissing checks that the Storage has no value under the given key.
func (s *Storage) AssertMissing(key string) {
	s.T.Helper()

	ok, err := s.Get(key, nil)
	if err != nil {
		s.T.Errorf("Error while getting key %q from storage: %v", key, err)
		return
	}

	if ok {
		s.T.Errorf("Expected storage to not contain key %q but it does", key)
	}
}
