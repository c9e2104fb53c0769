package kafka_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/services/loan-servicing/internal/application/dto"
	"github.com/bibbank/bib/services/loan-servicing/internal/infrastructure/kafka"
	pkgkafka "github.com/bibbank/bib/services/loan-servicing/pkg/kafka"
)

type fakeCloser struct {
	err      error
	requests []dto.CloseAccountingDayRequest
}

func (f *fakeCloser) Execute(_ context.Context, req dto.CloseAccountingDayRequest) (dto.CloseAccountingDayResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return dto.CloseAccountingDayResponse{}, f.err
	}
	return dto.CloseAccountingDayResponse{BusinessDate: req.BusinessDate, FailedLoans: []string{"loan-9"}}, nil
}

func TestAccountingDayHandler_ClosesBusinessDate(t *testing.T) {
	closer := &fakeCloser{}
	handler := kafka.AccountingDayHandler(closer, discardLogger())

	err := handler(context.Background(), pkgkafka.Message{Value: []byte(`{"business_date":"2024-03-01"}`)})

	require.NoError(t, err)
	require.Len(t, closer.requests, 1)
	assert.True(t, closer.requests[0].BusinessDate.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestAccountingDayHandler_DiscardsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":     `{`,
		"missing date": `{}`,
		"bad date":     `{"business_date":"01/03/2024"}`,
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			closer := &fakeCloser{}
			handler := kafka.AccountingDayHandler(closer, discardLogger())

			err := handler(context.Background(), pkgkafka.Message{Value: []byte(value)})

			assert.NoError(t, err)
			assert.Empty(t, closer.requests)
		})
	}
}

func TestAccountingDayHandler_PropagatesFailure(t *testing.T) {
	closer := &fakeCloser{err: errors.New("database unavailable")}
	handler := kafka.AccountingDayHandler(closer, discardLogger())

	err := handler(context.Background(), pkgkafka.Message{Value: []byte(`{"business_date":"2024-03-01"}`)})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "2024-03-01")
}
