package testutils

import (
	"context"

	"github.com/loomworks/engram/pkg/vector"
)

// MockVectorDriver is a test vector driver
type MockVectorDriver struct {
	// Results is returned by Query, truncated to topK.
	Results []vector.QueryResult

	// Documents accumulates everything passed to Add.
	Documents []vector.Document

	// DeletedIDs accumulates everything passed to Delete.
	DeletedIDs []string

	// Queries counts how many times Query was called.
	Queries int

	// FailQuery causes Query to return an error.
	FailQuery error
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	m.Documents = append(m.Documents, docs...)
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int) ([]vector.QueryResult, error) {
	m.Queries++
	if m.FailQuery != nil {
		return nil, m.FailQuery
	}
	if len(m.Results) < topK {
		return m.Results, nil
	}
	return m.Results[:topK], nil
}

func (m *MockVectorDriver) Get(_ context.Context, _ []string) ([]vector.Document, error) {
	return m.Documents, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	m.DeletedIDs = append(m.DeletedIDs, ids...)
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}
