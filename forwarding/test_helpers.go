package forwarding

import "github.com/stretchr/testify/mock"

// MatchExecution builds a mock argument matcher over executions
func MatchExecution(matcher func(Execution) bool) interface{} {
	return mock.MatchedBy(matcher)
}
