package mocks

import "github.com/stretchr/testify/mock"

// MockVerifier is a mock implementation of the jwt.Verifier interface
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(tokenString string) (string, error) {
	args := m.Called(tokenString)
	return args.String(0), args.Error(1)
}
