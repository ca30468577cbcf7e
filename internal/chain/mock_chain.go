package chain

import (
	"context"
	"errors"
	"math/big"
)

// MockTransferService simulates the chain boundary for testing.
type MockTransferService struct {
	NextHash    string   // hash returned by the next SubmitTransfer
	SubmitErr   error    // forces submission failure
	ConfirmErr  error    // forces confirmation failure
	SubmitCalls int      // number of SubmitTransfer invocations
	Submitted   []string // recipients of successful submissions
}

func (m *MockTransferService) SubmitTransfer(ctx context.Context, recipient string, amount *big.Int) (string, error) {
	m.SubmitCalls++
	if m.SubmitErr != nil {
		return "", m.SubmitErr
	}
	m.Submitted = append(m.Submitted, recipient)
	if m.NextHash == "" {
		return "0xmockhash", nil
	}
	return m.NextHash, nil
}

func (m *MockTransferService) WaitConfirmed(ctx context.Context, txHash string) error {
	return m.ConfirmErr
}

func (m *MockTransferService) Close() {}

// MockTransferServiceFail always fails at submission.
type MockTransferServiceFail struct{}

func (m *MockTransferServiceFail) SubmitTransfer(ctx context.Context, recipient string, amount *big.Int) (string, error) {
	return "", errors.New("mock chain submit failed")
}

func (m *MockTransferServiceFail) WaitConfirmed(ctx context.Context, txHash string) error {
	return errors.New("mock chain confirm failed")
}

func (m *MockTransferServiceFail) Close() {}
