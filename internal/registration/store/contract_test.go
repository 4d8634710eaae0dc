package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/models"
)

// ContractSuite runs the behaviour every Store backend must share.
// Backend suites embed it and set newStore.
type ContractSuite struct {
	suite.Suite
	newStore func() Store
	store    Store
}

func (s *ContractSuite) SetupTest() {
	s.store = s.newStore()
}

// Timestamps are whole milliseconds so every backend round-trips them exactly.
var contractBase = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func contractReg(id int64, country string) models.Registration {
	return models.Registration{
		ID:        id,
		Country:   country,
		Name:      fmt.Sprintf("user-%d", id),
		Message:   "hello",
		Timestamp: contractBase.Add(time.Duration(id) * time.Minute),
	}
}

func contractSeed() models.Document {
	return models.Document{Registrations: []models.Registration{
		contractReg(1, "Nigeria"),
		contractReg(2, "Ghana"),
		contractReg(3, "Nigeria"),
	}}
}

func (s *ContractSuite) TestEmptyStoreLoadsEmpty() {
	ctx := context.Background()

	doc, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Empty(doc.Registrations)

	regs, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Empty(regs)
}

func (s *ContractSuite) TestInitializeWritesSeedOnce() {
	ctx := context.Background()

	created, err := s.store.Initialize(ctx, contractSeed())
	s.Require().NoError(err)
	s.True(created)

	created, err = s.store.Initialize(ctx, models.Document{Registrations: []models.Registration{contractReg(99, "Egypt")}})
	s.Require().NoError(err)
	s.False(created)

	regs, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Equal(contractSeed().Registrations, regs)
}

func (s *ContractSuite) TestReinitializeKeepsAppendedRegistrations() {
	ctx := context.Background()

	_, err := s.store.Initialize(ctx, contractSeed())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(ctx, contractReg(10, "Kenya")))

	created, err := s.store.Initialize(ctx, contractSeed())
	s.Require().NoError(err)
	s.False(created)

	regs, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(regs, 4)
	s.Equal("Kenya", regs[3].Country)
}

func (s *ContractSuite) TestAppendGrowsByOneAndPreservesPriorEntries() {
	ctx := context.Background()
	_, err := s.store.Initialize(ctx, contractSeed())
	s.Require().NoError(err)

	before, err := s.store.List(ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Append(ctx, contractReg(4, "South Africa")))

	after, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(after, len(before)+1)
	s.Equal(before, after[:len(before)])
	s.Equal(contractReg(4, "South Africa"), after[len(before)])
}

func (s *ContractSuite) TestAppendWithoutInitializeCreatesStore() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, contractReg(1, "Ghana")))

	created, err := s.store.Initialize(ctx, contractSeed())
	s.Require().NoError(err)
	s.False(created, "an appended-to store already exists")

	regs, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(regs, 1)
}

func (s *ContractSuite) TestMessageIsOptional() {
	ctx := context.Background()
	reg := contractReg(5, "Egypt")
	reg.Message = ""
	s.Require().NoError(s.store.Append(ctx, reg))

	regs, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(regs, 1)
	s.Equal("", regs[0].Message)
}

func (s *ContractSuite) TestConcurrentAppendsAreNotLost() {
	ctx := context.Background()
	const writers = 20

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			errs <- s.store.Append(ctx, contractReg(id, "Mali"))
		}(int64(i + 1))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	regs, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(regs, writers)
}
