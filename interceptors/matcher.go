package interceptors

import (
	"github.com/gramhook/errhook/rpcerr"
)

// ErrorMatcher decides whether an error is eligible for interception
type ErrorMatcher interface {
	Match(err error) bool
}

// MatcherFunc is a function adapter for ErrorMatcher
type MatcherFunc func(err error) bool

// Match implements ErrorMatcher
func (f MatcherFunc) Match(err error) bool {
	return f(err)
}

// ProtocolErrors matches every error returned by the Telegram API
func ProtocolErrors() ErrorMatcher {
	return MatcherFunc(rpcerr.IsRPCError)
}

// AllErrors matches every non-nil error
func AllErrors() ErrorMatcher {
	return MatcherFunc(func(err error) bool {
		return err != nil
	})
}

// KindMatcher matches protocol errors of the given kinds
type KindMatcher struct {
	kinds map[rpcerr.Kind]bool
}

// NewKindMatcher creates a matcher for specific protocol error kinds
func NewKindMatcher(kinds ...rpcerr.Kind) *KindMatcher {
	kindMap := make(map[rpcerr.Kind]bool)
	for _, k := range kinds {
		kindMap[k] = true
	}
	return &KindMatcher{kinds: kindMap}
}

// Match implements ErrorMatcher
func (m *KindMatcher) Match(err error) bool {
	return rpcerr.IsRPCError(err) && m.kinds[rpcerr.KindOf(err)]
}

// AnyOf combines matchers with OR logic
type AnyOf []ErrorMatcher

// Match implements ErrorMatcher - at least one matcher must match
func (m AnyOf) Match(err error) bool {
	for _, matcher := range m {
		if matcher.Match(err) {
			return true
		}
	}
	return false
}

// AllOf combines matchers with AND logic
type AllOf []ErrorMatcher

// Match implements ErrorMatcher - every matcher must match
func (m AllOf) Match(err error) bool {
	if len(m) == 0 {
		return false
	}
	for _, matcher := range m {
		if !matcher.Match(err) {
			return false
		}
	}
	return true
}
