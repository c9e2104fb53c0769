package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bibbank/bib/services/loan-servicing/internal/application/dto"
	pkgkafka "github.com/bibbank/bib/services/loan-servicing/pkg/kafka"
)

const businessDateLayout = "2006-01-02"

// AccountingDayCloser runs end-of-day processing across servicing loans.
type AccountingDayCloser interface {
	Execute(ctx context.Context, req dto.CloseAccountingDayRequest) (dto.CloseAccountingDayResponse, error)
}

type accountingDayClosed struct {
	BusinessDate string `json:"business_date"`
}

// AccountingDayHandler returns a pkg/kafka.Handler that closes the business
// day named in each accounting.day-closed message. A malformed message is
// logged and acknowledged since redelivery cannot fix it.
func AccountingDayHandler(closer AccountingDayCloser, logger *slog.Logger) pkgkafka.Handler {
	return func(ctx context.Context, msg pkgkafka.Message) error {
		businessDate, err := parseAccountingDay(msg.Value)
		if err != nil {
			logger.ErrorContext(ctx, "discarding malformed accounting day message",
				"key", string(msg.Key),
				"error", err,
			)
			return nil
		}

		resp, err := closer.Execute(ctx, dto.CloseAccountingDayRequest{BusinessDate: businessDate})
		if err != nil {
			return fmt.Errorf("close accounting day %s: %w", businessDate.Format(businessDateLayout), err)
		}
		if len(resp.FailedLoans) > 0 {
			logger.WarnContext(ctx, "accounting day closed with failures",
				"business_date", businessDate.Format(businessDateLayout),
				"failed", len(resp.FailedLoans),
			)
		}
		return nil
	}
}

func parseAccountingDay(value []byte) (time.Time, error) {
	var payload accountingDayClosed
	if err := json.Unmarshal(value, &payload); err != nil {
		return time.Time{}, fmt.Errorf("decode payload: %w", err)
	}
	if payload.BusinessDate == "" {
		return time.Time{}, errors.New("business_date is required")
	}
	date, err := time.Parse(businessDateLayout, payload.BusinessDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse business_date: %w", err)
	}
	return date, nil
}
