package notify

import (
	"context"

	"github.com/agentoven/agentoven/ledger/pkg/contracts"
	"github.com/agentoven/agentoven/ledger/pkg/models"
)

// publishingLedger forwards every call and publishes successful executions.
type publishingLedger struct {
	contracts.LedgerService
	svc *Service
}

// Wrap returns a LedgerService that publishes each committed Result to svc.
func Wrap(l contracts.LedgerService, svc *Service) contracts.LedgerService {
	return &publishingLedger{LedgerService: l, svc: svc}
}

func (p *publishingLedger) Execute(ctx context.Context, caller string, funds []models.Coin, msg contracts.Msg) (*contracts.Result, error) {
	res, err := p.LedgerService.Execute(ctx, caller, funds, msg)
	if err == nil {
		p.svc.Publish(res)
	}
	return res, err
}
