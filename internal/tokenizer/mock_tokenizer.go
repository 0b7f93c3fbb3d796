package tokenizer

import "github.com/stretchr/testify/mock"

// MockTokenizer is a mock implementation of Tokenizer using testify/mock.
type MockTokenizer struct {
	mock.Mock
}

func (m *MockTokenizer) Encode(text string) ([]int, error) {
	args := m.Called(text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}
